package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
	"github.com/comalice/statechart/testutil"
)

func TestChannelPublisher(t *testing.T) {
	ch := make(chan core.Notification, 1)
	p := NewChannelPublisher(ch)

	p.Publish(core.Notification{Type: core.NotifySnapshot, Machine: "m"})
	p.Publish(core.Notification{Type: core.NotifyDiagnostic, Machine: "m"})
	assert.Equal(t, 1, p.Dropped())

	n := <-ch
	assert.Equal(t, core.NotifySnapshot, n.Type)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	p.Publish(core.Notification{})
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 1, p.Dropped())
}

func TestChannelPublisherSubscribed(t *testing.T) {
	mb := primitives.NewMachineBuilder("toggle", "off")
	mb.Atomic("off").On("FLIP", "on")
	mb.Atomic("on").On("FLIP", "off")

	ch := make(chan core.Notification, 8)
	p := NewChannelPublisher(ch)
	h := testutil.NewHarness(t, mb.Build())
	h.In.Subscribe(p.Publish)

	h.Start()
	h.Send("FLIP")
	require.NoError(t, p.Close())

	var active [][]string
	for n := range ch {
		active = append(active, n.Snapshot.Active)
	}
	assert.Equal(t, [][]string{{"off"}, {"on"}}, active)
}
