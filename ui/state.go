package ui

import "github.com/honganh1206/stargazer/preview"

// State is one frame for the watch screen.
type State struct {
	Previews []preview.Preview
	Status   string
	Err      error
}

type Controller struct {
	Updates chan *State
}

func NewController() *Controller {
	return &Controller{Updates: make(chan *State, 10)}
}

// Publish queues s for the renderer. Only the latest frame matters, so when
// the renderer falls behind the oldest queued frame is dropped.
func (c *Controller) Publish(s *State) {
	for {
		select {
		case c.Updates <- s:
			return
		default:
		}

		select {
		case <-c.Updates:
		default:
		}
	}
}

func (c *Controller) Subscribe() <-chan *State {
	return c.Updates
}
