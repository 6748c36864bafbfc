package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserve/dispatch/core/model"
)

func TestDecode_TechLocation(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"tech_location","seq":12,"tech_id":"t1","latitude":48.85,"longitude":2.35,"status":"enroute"}`))
	require.NoError(t, err)
	loc, ok := ev.(TechLocation)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, uint64(12), loc.Seq())
	assert.Equal(t, "t1", loc.TechID)
	assert.InDelta(t, 48.85, loc.Latitude, 1e-9)
	assert.Equal(t, model.TechEnroute, loc.Status)
	assert.Equal(t, TypeTechLocation, TypeOf(ev))
	assert.False(t, Structural(ev))
}

func TestDecode_TechStatus(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"tech_status","seq":3,"tech_id":"t2","status":"on_site","job_id":"j9"}`))
	require.NoError(t, err)
	st, ok := ev.(TechStatus)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, model.TechOnSite, st.Status)
	assert.Equal(t, "j9", st.JobID)
	assert.False(t, Structural(ev))
}

func TestDecode_StructuralEvents(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"job_assigned","seq":4,"job_id":"j1","tech_id":"t1"}`))
	require.NoError(t, err)
	require.IsType(t, JobAssigned{}, ev)
	assert.True(t, Structural(ev))

	ev, err = Decode([]byte(`{"type":"job_status","seq":5,"job_id":"j1","status":"complete"}`))
	require.NoError(t, err)
	js, ok := ev.(JobStatusChanged)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, model.JobComplete, js.Status)
	assert.True(t, Structural(ev))
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`{"type":"route_recomputed","seq":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}
