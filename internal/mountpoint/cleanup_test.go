package mountpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []string
	c := NewCleanupStack()
	c.Push("first", func() error {
		order = append(order, "first")
		return nil
	})
	c.Push("second", func() error {
		order = append(order, "second")
		return nil
	})

	c.Run()

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestCleanupRunsOnce(t *testing.T) {
	count := 0
	c := NewCleanupStack()
	c.Push("counter", func() error {
		count++
		return nil
	})

	c.Run()
	c.Run()

	assert.Equal(t, 1, count)
}

func TestCleanupSkipsPreserved(t *testing.T) {
	var ran []string
	c := NewCleanupStack()
	c.Push("kept", func() error {
		ran = append(ran, "kept")
		return nil
	}).Preserve()
	c.Push("released", func() error {
		ran = append(ran, "released")
		return nil
	})

	c.Run()

	assert.Equal(t, []string{"released"}, ran)
}

func TestCleanupContinuesPastFailures(t *testing.T) {
	var ran []string
	c := NewCleanupStack()
	c.Push("first", func() error {
		ran = append(ran, "first")
		return nil
	})
	c.Push("failing", func() error {
		return assert.AnError
	})

	c.Run()

	assert.Equal(t, []string{"first"}, ran)
}
