package app

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/facegate/internal/identity"
	"github.com/ayusman/facegate/internal/store"
)

func TestEnrollments_SaveReplacesByName(t *testing.T) {
	svc := NewEnrollments(newTestStore(t), nil, "")
	ctx := context.Background()

	first, err := svc.Save(ctx, "alice", []identity.Descriptor{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Captures)

	second, err := svc.Save(ctx, "alice", []identity.Descriptor{{5, 6}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same name keeps the enrollment")
	assert.Equal(t, 1, second.Captures)

	refs, err := svc.References(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []identity.Descriptor{{5, 6}}, refs)

	_, err = svc.Save(ctx, "", nil)
	assert.Error(t, err)
}

func TestEnrollments_SaveFailureLeavesNoEnrollment(t *testing.T) {
	svc := NewEnrollments(newTestStore(t), nil, "")

	_, err := svc.Save(context.Background(), "carol", []identity.Descriptor{{math.NaN()}})
	require.Error(t, err)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = svc.Latest()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnrollments_ImportFiltersMalformed(t *testing.T) {
	svc := NewEnrollments(newTestStore(t), nil, "")
	ctx := context.Background()

	enr, n, err := svc.Import(ctx, "bob", []byte(`[[1,2,3],"bad",[4,5,6]]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, enr.Captures)

	_, _, err = svc.Import(ctx, "carol", []byte(`["bad", {}]`))
	assert.ErrorIs(t, err, identity.ErrInvalidDocument)

	_, _, err = svc.Import(ctx, "dave", []byte(`42`))
	assert.ErrorIs(t, err, identity.ErrInvalidDocument)
}

func TestEnrollments_ExportAndDelete(t *testing.T) {
	exportDir := filepath.Join(t.TempDir(), "exports")
	svc := NewEnrollments(newTestStore(t), nil, exportDir)
	ctx := context.Background()

	enr, err := svc.Save(ctx, "alice", []identity.Descriptor{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}})
	require.NoError(t, err)

	path, err := svc.WriteExport(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, enr.ID+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	set, err := identity.Import(data)
	require.NoError(t, err)
	assert.Equal(t, []identity.Descriptor{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, set)

	require.NoError(t, svc.Delete(ctx, enr.ID))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "export removed with the enrollment")

	_, err = svc.Get(enr.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, enr.ID), store.ErrNotFound)
}

func TestEnrollments_RenameAndVerifications(t *testing.T) {
	svc := NewEnrollments(newTestStore(t), nil, "")
	ctx := context.Background()

	enr, err := svc.Save(ctx, "alice", []identity.Descriptor{{1}})
	require.NoError(t, err)

	renamed, err := svc.Rename(enr.ID, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Name)

	_, err = svc.Rename("missing", "x")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.RecordVerification(enr.ID, 0.12, true))
	history, err := svc.Verifications(enr.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 0.12, history[0].Distance, 1e-9)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, enr.ID, latest.ID)
}
