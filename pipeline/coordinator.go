package pipeline

import (
	"context"
	"errors"

	"github.com/aluiziolira/go-key-pricer/models"
)

// ErrBusy is returned when a run is requested while another one is active.
var ErrBusy = errors.New("pipeline: a run is already active")

// Coordinator lets at most one run use the driver at a time. Requests made
// while the slot is taken fail fast with ErrBusy.
type Coordinator struct {
	driver  *Driver
	session *Session
	slot    chan struct{}
}

// NewCoordinator wires a driver to the session it runs with.
func NewCoordinator(driver *Driver, session *Session) *Coordinator {
	return &Coordinator{
		driver:  driver,
		session: session,
		slot:    make(chan struct{}, 1),
	}
}

// Run processes titles as one batch.
func (c *Coordinator) Run(ctx context.Context, titles []string, out OutputWriter) (*models.BatchResult, error) {
	if !c.acquire() {
		return nil, ErrBusy
	}
	defer c.release()
	return c.driver.Run(ctx, c.session, titles, out)
}

// Quote resolves a single title outside of a batch.
func (c *Coordinator) Quote(ctx context.Context, title string) (*models.Resolution, *models.ReportLine, error) {
	if !c.acquire() {
		return nil, nil, ErrBusy
	}
	defer c.release()
	defer c.session.Reset()
	res, line := c.driver.Quote(ctx, title)
	return res, line, nil
}

// Cancel signals the active run to stop. It reports false when nothing is running.
func (c *Coordinator) Cancel() bool {
	if !c.Active() {
		return false
	}
	c.session.Cancel()
	return true
}

// Active reports whether a run holds the slot.
func (c *Coordinator) Active() bool {
	return len(c.slot) > 0
}

func (c *Coordinator) acquire() bool {
	select {
	case c.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Coordinator) release() {
	<-c.slot
}
