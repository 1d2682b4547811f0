package slugcam

import "time"

// Label is the binary classification of a captured image
type Label int

const (
	LabelNegative Label = iota
	LabelPositive
)

// String returns the class name, which is also the name of the directory the image is stored in
func (l Label) String() string {
	switch l {
	case LabelPositive:
		return "slug"
	default:
		fallthrough
	case LabelNegative:
		return "no_slug"
	}
}

// Positive is true when the target was detected
func (l Label) Positive() bool {
	return l == LabelPositive
}

// Direction is the direction that the pan mechanism is sweeping
type Direction int

const (
	DirectionRight Direction = iota
	DirectionLeft
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "Left"
	default:
		fallthrough
	case DirectionRight:
		return "Right"
	}
}

// Reverse returns the opposite Direction
func (d Direction) Reverse() Direction {
	if d == DirectionLeft {
		return DirectionRight
	}
	return DirectionLeft
}

// Sign is +1 for Right and -1 for Left. Stepper moves are multiplied by it
func (d Direction) Sign() int32 {
	if d == DirectionLeft {
		return -1
	}
	return +1
}

// Capture is the result of one pass through the detection loop
type Capture struct {
	ID       string
	Time     time.Time
	Filename string
	Path     string
	Score    float64
	Label    Label

	// Uploaded is true after the image was sent to the hub and the webhook fired
	Uploaded bool
}
