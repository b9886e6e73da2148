package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffkit/internal/domain"
	"diffkit/internal/repository"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err, "failed to create test repository")
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func floatPtr(v float64) *float64 {
	return &v
}

func testDataset(id, format string, st domain.SignalType, loadedAt time.Time) *domain.Dataset {
	md := domain.NewMetadata()
	md.Set(domain.MetaTitle, id)
	md.Set(domain.MetaBeamEnergy, 200.0)
	return &domain.Dataset{
		ID:            id,
		Path:          "/data/" + id + "." + format,
		Format:        format,
		SignalType:    st,
		LoadKind:      domain.LoadKindTyped,
		Shape:         []int{4, 4, 256, 256},
		NavigationDim: 2,
		BeamEnergyKeV: floatPtr(200),
		WavelengthPM:  floatPtr(2.5079),
		Metadata:      md,
		LoadedAt:      loadedAt,
	}
}

// ============================================================================
// Dataset Tests
// ============================================================================

func TestCreateAndGetDataset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	loadedAt := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

	d := testDataset("cs0001", "blo", domain.SignalTypeElectronDiffraction, loadedAt)
	d.Notice = "file suffix unknown"
	require.NoError(t, repo.CreateDataset(ctx, d))

	got, err := repo.GetDataset(ctx, "cs0001")
	require.NoError(t, err)

	assert.Equal(t, d.Path, got.Path)
	assert.Equal(t, "blo", got.Format)
	assert.Equal(t, domain.SignalTypeElectronDiffraction, got.SignalType)
	assert.Equal(t, domain.LoadKindTyped, got.LoadKind)
	assert.Equal(t, "file suffix unknown", got.Notice)
	assert.Equal(t, []int{4, 4, 256, 256}, got.Shape)
	assert.Equal(t, 2, got.NavigationDim)
	require.NotNil(t, got.BeamEnergyKeV)
	assert.Equal(t, 200.0, *got.BeamEnergyKeV)
	require.NotNil(t, got.WavelengthPM)
	assert.Equal(t, 2.5079, *got.WavelengthPM)
	assert.True(t, loadedAt.Equal(got.LoadedAt), "loaded_at = %s, want %s", got.LoadedAt, loadedAt)

	title, _ := got.Metadata.GetString(domain.MetaTitle)
	assert.Equal(t, "cs0001", title)
}

func TestCreateDatasetOptionalFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := testDataset("cs0002", "hspy", domain.SignalTypeGeneric, time.Now())
	d.LoadKind = domain.LoadKindGeneric
	d.BeamEnergyKeV = nil
	d.WavelengthPM = nil
	d.Metadata = nil
	require.NoError(t, repo.CreateDataset(ctx, d))

	got, err := repo.GetDataset(ctx, "cs0002")
	require.NoError(t, err)
	assert.Nil(t, got.BeamEnergyKeV)
	assert.Nil(t, got.WavelengthPM)
	assert.Empty(t, got.Notice)
	assert.Equal(t, 0, got.Metadata.Len())
	assert.True(t, got.SignalType.IsGeneric())
}

func TestCreateDatasetDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	d := testDataset("dup", "blo", domain.SignalTypeElectronDiffraction, time.Now())
	require.NoError(t, repo.CreateDataset(ctx, d))
	assert.Error(t, repo.CreateDataset(ctx, d))
}

func TestGetDatasetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetDataset(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListDatasets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*domain.Dataset{
		testDataset("a", "blo", domain.SignalTypeElectronDiffraction, base),
		testDataset("b", "hspy", domain.SignalTypeTemplateMatching, base.Add(time.Hour)),
		testDataset("c", "hspy", domain.SignalTypeElectronDiffraction, base.Add(2*time.Hour)),
	}
	seed[1].LoadKind = domain.LoadKindGeneric
	for _, d := range seed {
		require.NoError(t, repo.CreateDataset(ctx, d))
	}

	ids := func(ds []*domain.Dataset) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.ID
		}
		return out
	}
	ed := domain.SignalTypeElectronDiffraction

	tests := []struct {
		name   string
		filter domain.DatasetFilter
		want   []string
	}{
		{"all newest first", domain.DatasetFilter{}, []string{"c", "b", "a"}},
		{"by format", domain.DatasetFilter{Format: "hspy"}, []string{"c", "b"}},
		{"by signal type", domain.DatasetFilter{SignalType: &ed}, []string{"c", "a"}},
		{"by load kind", domain.DatasetFilter{LoadKind: domain.LoadKindGeneric}, []string{"b"}},
		{"combined", domain.DatasetFilter{Format: "blo", SignalType: &ed}, []string{"a"}},
		{"limit", domain.DatasetFilter{Limit: 2}, []string{"c", "b"}},
		{"no match", domain.DatasetFilter{Format: "mib"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListDatasets(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestDeleteDataset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateDataset(ctx, testDataset("gone", "blo", domain.SignalTypeElectronDiffraction, time.Now())))
	require.NoError(t, repo.DeleteDataset(ctx, "gone"))

	_, err := repo.GetDataset(ctx, "gone")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.DeleteDataset(ctx, "gone")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDataset(ctx, testDataset("kept", "blo", domain.SignalTypeElectronDiffraction, time.Now())))
	require.NoError(t, repo.Close())

	repo, err = New(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetDataset(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ID)
}
