package clocksync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister_FirstBecomesMaster(t *testing.T) {
	s := New(1000)
	require.Equal(t, Master, s.Register("hdmi-a"))
	require.Equal(t, Slave, s.Register("hdmi-b"))
	require.Equal(t, Slave, s.Register("hdmi-c"))
	require.True(t, s.IsMaster("hdmi-a"))
}

func TestCorrection_ClampedBothDirections(t *testing.T) {
	s := New(100)
	s.Register("master")
	s.Register("slave")

	s.ReportQueued("master", 500)
	s.ReportQueued("slave", 100)
	// master has 400 more frames queued (slave ahead), clamp to 100.
	require.EqualValues(t, 100, s.Correction("slave"))

	s.ReportQueued("master", 100)
	s.ReportQueued("slave", 900)
	// master has 800 fewer frames queued (slave behind), clamp to -100.
	require.EqualValues(t, -100, s.Correction("slave"))
}

func TestCorrection_ExactDifferenceWithinClamp(t *testing.T) {
	s := New(1000)
	s.Register("master")
	s.Register("slave")
	s.ReportQueued("master", 640)
	s.ReportQueued("slave", 600)
	require.EqualValues(t, 40, s.Correction("slave"))
}

func TestCorrection_MasterAlwaysZero(t *testing.T) {
	s := New(1000)
	s.Register("master")
	s.ReportQueued("master", 999)
	require.EqualValues(t, 0, s.Correction("master"))
}

func TestPromoteMaster_RestartsReferenceFromNewMastersCurrentValue(t *testing.T) {
	s := New(1000)
	s.Register("master")
	s.Register("slave")
	s.ReportQueued("master", 500)
	s.ReportQueued("slave", 300)
	require.EqualValues(t, 200, s.Correction("slave"))

	s.Unregister("master")
	s.PromoteMaster("slave")
	require.True(t, s.IsMaster("slave"))
	// slave is now its own reference; correction against itself is 0.
	require.EqualValues(t, 0, s.Correction("slave"))
}

func TestUnregister_ClearsMasterWhenMasterLeaves(t *testing.T) {
	s := New(1000)
	s.Register("master")
	require.True(t, s.HasMaster())
	s.Unregister("master")
	require.False(t, s.HasMaster())
}
