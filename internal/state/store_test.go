package state

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenSynthesizesDefaultDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "state.json")

	store, err := Open(path, testLogger())
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default document should be persisted")

	store.View(func(doc *Document) {
		assert.True(t, doc.HasAdmin())
		assert.Len(t, doc.Orders, 2)
		assert.Len(t, doc.Chats, 2)
		assert.NotEmpty(t, doc.ActivityLog)
		assert.Equal(t, "ProfitCruiser", doc.Settings.SiteName)
		require.NotNil(t, doc.RobuxSettings)
		assert.Equal(t, 400, doc.RobuxSettings.MinRobux)
	})
}

func TestOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Open(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Update(func(doc *Document) error {
		doc.Orders = append(doc.Orders, Order{ID: "#99999", Username: "julian", Amount: 5, Currency: "EUR", Product: "Test", Status: OrderStatusPending})
		doc.Views["test-script"] = 3
		return nil
	}))

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)

	reopened.View(func(doc *Document) {
		order := doc.FindOrder("#99999")
		require.NotNil(t, order)
		assert.Equal(t, "julian", order.Username)
		assert.Equal(t, 3, doc.Views["test-script"])
	})
}

func TestUpdateErrorSkipsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store, err := Open(path, testLogger())
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	sentinel := errors.New("reject")
	err = store.Update(func(doc *Document) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOpenGuardsNilMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[],"orders":[]}`), 0o644))

	store, err := Open(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Update(func(doc *Document) error {
		doc.Views["x"]++
		doc.ScriptVisibility["x"] = true
		return nil
	}))
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, testLogger())
	require.Error(t, err)
}
