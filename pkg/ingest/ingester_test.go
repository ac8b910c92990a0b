package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeAPI struct {
	jobs []models.APIJob
	err  error
}

func (f fakeAPI) FetchJobs(context.Context) ([]models.APIJob, error) { return f.jobs, f.err }

type fakeHistory struct {
	jobs []models.HistoryJob
	err  error
}

func (f fakeHistory) ReadJobs(context.Context) ([]models.HistoryJob, error) { return f.jobs, f.err }

type fakeStore struct {
	replaced *models.RawSet
	err      error
}

func (f *fakeStore) ReplaceRaw(_ context.Context, raw models.RawSet) error {
	if f.err != nil {
		return f.err
	}
	f.replaced = &raw
	return nil
}

func TestIngester_Ingest(t *testing.T) {
	apiJobs := []models.APIJob{{ID: 1}, {ID: 2}}
	historyJobs := []models.HistoryJob{{JobID: 10}}

	tests := []struct {
		name        string
		api         fakeAPI
		history     fakeHistory
		storeErr    error
		unavailable bool
		staged      bool
	}{
		{name: "both sources staged", api: fakeAPI{jobs: apiJobs}, history: fakeHistory{jobs: historyJobs}, staged: true},
		{name: "api down stages nothing", api: fakeAPI{err: errors.New("timeout")}, history: fakeHistory{jobs: historyJobs}, unavailable: true},
		{name: "history missing stages nothing", api: fakeAPI{jobs: apiJobs}, history: fakeHistory{err: errors.New("no such file")}, unavailable: true},
		{name: "store failure is not a source error", api: fakeAPI{jobs: apiJobs}, history: fakeHistory{jobs: historyJobs}, storeErr: errors.New("deadlock")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{err: tt.storeErr}
			ingester := NewIngester(tt.api, tt.history, store, testLogger())

			raw, err := ingester.Ingest(context.Background())

			if tt.staged {
				require.NoError(t, err)
				assert.Equal(t, 3, raw.Count())
				require.NotNil(t, store.replaced)
				assert.Equal(t, apiJobs, store.replaced.API)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrSourceUnavailable))
			assert.Nil(t, store.replaced)
		})
	}
}
