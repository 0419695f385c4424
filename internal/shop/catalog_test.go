package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitcruiser/internal/state"
)

func TestCreateScriptDefaults(t *testing.T) {
	svc, _ := newTestShop(t)

	created, err := svc.CreateScript(state.Script{
		Slug:     "auto-rob-hub",
		Title:    "Auto Rob Hub",
		Category: "farming",
	})
	require.NoError(t, err)

	assert.Equal(t, "/images/scripts/placeholder.webp", created.Thumbnail)
	assert.Equal(t, "active", created.Status)
	assert.Equal(t, "1.0.0", created.Version)
	assert.True(t, created.Compatibility.PC)
	assert.True(t, created.Compatibility.ExecutorRequired)
	assert.NotEmpty(t, created.ReleaseDate)
	assert.Equal(t, 0, created.Views)

	_, err = svc.CreateScript(state.Script{Slug: "auto-rob-hub", Title: "Dup", Category: "farming"})
	require.ErrorIs(t, err, ErrScriptExists)

	_, err = svc.CreateScript(state.Script{Slug: "", Title: "X", Category: "y"})
	require.ErrorIs(t, err, ErrMissingScriptFields)
}

func TestUpdateAndDeleteScript(t *testing.T) {
	svc, _ := newTestShop(t)

	_, err := svc.CreateScript(state.Script{Slug: "auto-rob-hub", Title: "Auto Rob Hub", Category: "farming"})
	require.NoError(t, err)

	title := "Auto Rob Hub v2"
	status := "maintenance"
	updated, err := svc.UpdateScript("auto-rob-hub", ScriptPatch{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Auto Rob Hub v2", updated.Title)
	assert.Equal(t, "maintenance", updated.Status)
	assert.Equal(t, "farming", updated.Category)

	_, err = svc.UpdateScript("missing", ScriptPatch{Title: &title})
	require.ErrorIs(t, err, ErrScriptNotFound)

	require.NoError(t, svc.DeleteScript("auto-rob-hub"))
	require.ErrorIs(t, svc.DeleteScript("auto-rob-hub"), ErrScriptNotFound)
}

func TestScriptVisibilityFiltersPublicCatalog(t *testing.T) {
	svc, _ := newTestShop(t)

	_, err := svc.CreateScript(state.Script{Slug: "visible-one", Title: "Visible", Category: "misc"})
	require.NoError(t, err)
	_, err = svc.CreateScript(state.Script{Slug: "hidden-one", Title: "Hidden", Category: "misc"})
	require.NoError(t, err)

	require.NoError(t, svc.SetScriptVisibility("hidden-one", true))

	public := svc.PublicScripts()
	slugs := make([]string, 0, len(public))
	for _, script := range public {
		slugs = append(slugs, script.Slug)
	}
	assert.Contains(t, slugs, "visible-one")
	assert.NotContains(t, slugs, "hidden-one")

	assert.Equal(t, []string{"hidden-one"}, svc.HiddenSlugs())
	assert.Len(t, svc.AdminScripts(), 2)

	require.NoError(t, svc.SetScriptVisibility("hidden-one", false))
	assert.Empty(t, svc.HiddenSlugs())
}

func TestRecordView(t *testing.T) {
	svc, _ := newTestShop(t)

	before := svc.Views()

	snap, err := svc.RecordView("auto-rob-hub")
	require.NoError(t, err)
	assert.Equal(t, before.Views["auto-rob-hub"]+1, snap.Views["auto-rob-hub"])
	assert.Equal(t, before.Total+1, snap.Total)

	snap, err = svc.RecordView("auto-rob-hub")
	require.NoError(t, err)
	assert.Equal(t, before.Views["auto-rob-hub"]+2, snap.Views["auto-rob-hub"])
}

func TestPublicScriptsCarryLiveViewCounts(t *testing.T) {
	svc, _ := newTestShop(t)

	_, err := svc.CreateScript(state.Script{Slug: "counted", Title: "Counted", Category: "misc"})
	require.NoError(t, err)

	_, err = svc.RecordView("counted")
	require.NoError(t, err)
	_, err = svc.RecordView("counted")
	require.NoError(t, err)

	for _, script := range svc.PublicScripts() {
		if script.Slug == "counted" {
			assert.Equal(t, 2, script.Views)
			return
		}
	}
	t.Fatal("script not found in public catalog")
}
