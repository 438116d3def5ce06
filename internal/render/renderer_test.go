package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/herald/internal/types"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultOptions())
	require.NoError(t, err)
	return r
}

func TestCatalog_CoversEveryPreferenceKeyAndVariant(t *testing.T) {
	for _, k := range types.PreferenceKeys() {
		assert.True(t, Has(k.Key), "missing template for %s", k.Key)
	}
	for _, v := range []types.EventType{
		types.EventTeamMemberRemoved,
		types.EventProjectDeadlineChanged,
		types.EventTaskBlocked,
		types.EventTaskPriorityChanged,
		types.EventTaskProgressUpdated,
		types.EventTaskDueDateChanged,
	} {
		assert.True(t, Has(v), "missing template for %s", v)
	}
}

func TestRender_EveryEventTypeWithEmptyParams(t *testing.T) {
	r := newTestRenderer(t)
	for _, et := range EventTypes() {
		msg, err := r.Render(et, nil)
		require.NoError(t, err, et)
		assert.NotContains(t, msg.Text, "<no value>", et)
		assert.NotContains(t, msg.HTML, "&lt;no value&gt;", et)
	}
}

func TestRender_UnknownEventType(t *testing.T) {
	_, err := newTestRenderer(t).Render("noSuchEvent", types.Params{})
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestRender_ProjectCompleted(t *testing.T) {
	msg, err := newTestRenderer(t).Render(types.EventProjectCompleted, types.Params{
		"projectName":  "Website Redesign",
		"actorName":    "maria",
		"stage":        "completed",
		types.ParamURL: "https://tracker.example.com/projects/p1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Project completed: Website Redesign", msg.Subject)
	assert.Contains(t, msg.Text, "maria marked Website Redesign as completed.")
	assert.Contains(t, msg.Text, "Open project: https://tracker.example.com/projects/p1")
	assert.Contains(t, msg.HTML, `href="https://tracker.example.com/projects/p1"`)
}

func TestRender_EscapesHTMLOnly(t *testing.T) {
	msg, err := newTestRenderer(t).Render(types.EventProjectCreated, types.Params{
		"projectName": "<script>x</script>",
		"actorName":   "maria",
	})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.Text, "<script>x</script>")
}

func TestRender_NoURLNoLink(t *testing.T) {
	msg, err := newTestRenderer(t).Render(types.EventTaskCompleted, types.Params{"taskTitle": "Write copy"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<a ")
	assert.NotContains(t, msg.Text, "Open task:")
}

func TestRender_NumbersAndSubjectLineBreaks(t *testing.T) {
	r, err := NewRenderer(Options{Product: "Tracker", SubjectPrefix: "[Tracker] "})
	require.NoError(t, err)

	msg, err := r.Render(types.EventBudgetAlert, types.Params{
		"projectName": "Site\r\nBcc: evil@example.com",
		"budget":      1000.0,
		"budgetSpent": 850.5,
		"percentage":  "85",
		"threshold":   "80",
	})
	require.NoError(t, err)
	assert.Equal(t, "[Tracker] Budget alert: Site Bcc: evil@example.com at 85%", msg.Subject)
	assert.Contains(t, msg.Text, "has spent 850.5 of its 1000 budget (85%)")
	assert.Contains(t, msg.Text, "Tracker notification settings")
}

func TestRenderDigest_GroupsAndCounts(t *testing.T) {
	ts := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	view := types.DigestView{
		UserName:  "uma",
		Frequency: types.FrequencyDailyDigest,
		Groups: []types.DigestGroup{
			{Type: types.EventTaskDueSoon, Items: []types.DigestEntry{
				{Type: types.EventTaskDueSoon, Title: "Write copy due", Timestamp: ts},
				{Type: types.EventTaskDueSoon, Title: "Review due", Description: "Tomorrow", URL: "https://t.example/tasks/2", Timestamp: ts},
			}},
			{Type: types.EventProjectCompleted, Items: []types.DigestEntry{
				{Type: types.EventProjectCompleted, Title: "Site done", Timestamp: ts},
			}},
		},
	}

	msg, err := newTestRenderer(t).RenderDigest(view)
	require.NoError(t, err)

	assert.Equal(t, "Daily digest: 3 updates", msg.Subject)
	assert.Contains(t, msg.Text, "Hi uma")
	assert.Contains(t, msg.Text, "Task due date changes (2)")
	assert.Contains(t, msg.Text, "Project completed (1)")
	assert.Contains(t, msg.Text, "- Review due (Oct 16, 2026 09:30)")
	assert.Contains(t, msg.Text, "https://t.example/tasks/2")
	assert.Equal(t, 2, strings.Count(msg.HTML, "<h3"))
	assert.Contains(t, msg.HTML, `<a href="https://t.example/tasks/2">Review due</a>`)
}

func TestRenderDigest_WeeklySingular(t *testing.T) {
	msg, err := newTestRenderer(t).RenderDigest(types.DigestView{
		Frequency: types.FrequencyWeeklyDigest,
		Groups: []types.DigestGroup{{
			Type:  types.EventTaskAssigned,
			Label: "Assigned",
			Items: []types.DigestEntry{{Type: types.EventTaskAssigned, Title: "t"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Weekly digest: 1 update", msg.Subject)
	assert.Contains(t, msg.Text, "Assigned (1)")
}

func TestRenderDigest_Empty(t *testing.T) {
	_, err := newTestRenderer(t).RenderDigest(types.DigestView{})
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Task assigned to you", Label(types.EventTaskAssigned))
	assert.Equal(t, "Task status, priority or progress changed", Label(types.EventTaskBlocked))
	assert.Equal(t, "custom", Label("custom"))
}
