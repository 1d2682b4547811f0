// Package camera captures still images for the detector.
//
// The Raspberry Pi camera is driven through the rpicam-apps command line tools (rpicam-still, or
// libcamera-still on older releases) and USB cameras through ffmpeg's V4L2 input. Each capture runs
// the tool once and decodes the JPEG it writes to stdout, so the matching package must be installed:
//
//	sudo apt install rpicam-apps    # or libcamera-apps
//	sudo apt install ffmpeg
//
// Images are rotated and resized with Process so that they match the input of the model.
package camera
