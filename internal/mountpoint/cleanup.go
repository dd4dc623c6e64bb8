package mountpoint

import (
	"os"
	"os/signal"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// CleanupStack collects release actions (unmounts, temp-file removals)
// and runs them in reverse order of registration. Run executes at most
// once, whether triggered by normal termination or a signal.
type CleanupStack struct {
	mu      sync.Mutex
	actions []*CleanupAction
	ran     bool
}

// CleanupAction is one registered release step. Preserve marks it to be
// skipped, used for diagnostic files the operator needs after a failure.
type CleanupAction struct {
	name      string
	fn        func() error
	preserved bool
}

// Preserve keeps the resource past the end of the run.
func (a *CleanupAction) Preserve() {
	a.preserved = true
}

// NewCleanupStack returns an empty stack.
func NewCleanupStack() *CleanupStack {
	return &CleanupStack{}
}

// Push registers a release action and returns a handle that can
// preserve it.
func (c *CleanupStack) Push(name string, fn func() error) *CleanupAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := &CleanupAction{name: name, fn: fn}
	c.actions = append(c.actions, a)
	return a
}

// PushFile registers removal of a temporary file.
func (c *CleanupStack) PushFile(path string) *CleanupAction {
	return c.Push("remove "+path, func() error {
		return os.Remove(path)
	})
}

// Run releases everything in reverse order. Failures are logged and do
// not stop later actions; there is nothing better to do with them at
// this point.
func (c *CleanupStack) Run() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ran {
		return
	}
	c.ran = true

	for i := len(c.actions) - 1; i >= 0; i-- {
		a := c.actions[i]
		if a.preserved {
			continue
		}
		if err := a.fn(); err != nil {
			logrus.WithError(err).Warnf("cleanup: %s", a.name)
		}
	}
}

// HandleSignals runs the stack and exits when the process is
// interrupted mid-run.
func (c *CleanupStack) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-ch
		logrus.Warnf("interrupted by %s, cleaning up", sig)
		c.Run()
		os.Exit(1)
	}()
}
