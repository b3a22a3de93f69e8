package farm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prite36/farm-monitor/internal/models"
)

func TestImportCreatesPlant(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	res, err := reg.ImportJSON(context.Background(),
		[]byte(`[{"field":"F","plantType":"Wheat","date":"2025-01-01","event":"water"}]`))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 1}, res)

	plants := reg.Plants()
	require.Len(t, plants, 1)
	p := plants[0]
	assert.Equal(t, 3, p.WaterCycleDays)
	assert.Equal(t, models.StatusOK, p.Status)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), p.LastWatered)

	history := reg.History(p.ID)
	require.Len(t, history, 1)
	assert.Equal(t, models.EventAdded, history[0].Type)
	assert.Equal(t, "import", history[0].Details["source"])
}

func TestImportSkipsIncompleteRecords(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	res, err := reg.ImportJSON(context.Background(), []byte(`[
		{"field":"F","plantType":"Wheat"},
		{"field":"G","plantType":"Corn","date":"2025-02-01"},
		{"plantType":"Corn","date":"2025-02-01"},
		{"field":"H","plantType":"Corn","date":"yesterday"},
		{"field":"H","plantType":"Corn","date":"2030-01-01"},
		42,
		null
	]`))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 1, Skipped: 6}, res)

	plants := reg.Plants()
	require.Len(t, plants, 1)
	assert.Equal(t, "G", plants[0].Field)
	assert.Equal(t, 1, reg.Log().Len())
}

func TestImportMalformedPayload(t *testing.T) {
	payloads := []string{
		`"not an array"`,
		`{"field":"F"}`,
		`null`,
		`[{"field":`,
		``,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			reg, repo, _ := newTestRegistry(t)

			res, err := reg.ImportJSON(context.Background(), []byte(payload))
			assert.ErrorIs(t, err, ErrImportParse)
			assert.Equal(t, ImportResult{}, res)
			assert.Empty(t, reg.Plants())
			assert.Zero(t, reg.Log().Len())
			assert.Zero(t, repo.writes())
		})
	}
}

func TestImportMatchesExistingPlants(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newTestRegistry(t)
	p, err := reg.Add(ctx, "North 1", "Tomato", 7)
	require.NoError(t, err)

	res, err := reg.ImportBatch(ctx, []ImportRecord{
		{Field: "North 1", Species: "Tomato", Date: "2025-12-10", Event: "problem"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	got, _ := reg.Plant(p.ID)
	assert.Equal(t, models.StatusProblem, got.Status)
	assert.Equal(t, epoch, got.LastWatered)
	last := reg.History(p.ID)[0]
	assert.Equal(t, models.EventProblemReported, last.Type)
	assert.Equal(t, "import", last.Details["source"])

	_, err = reg.ImportBatch(ctx, []ImportRecord{
		{Field: "North 1", Species: "Tomato", Date: "2025-12-11", Event: "water"},
	})
	require.NoError(t, err)
	got, _ = reg.Plant(p.ID)
	assert.Equal(t, models.StatusOK, got.Status)
	assert.Equal(t, time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC), got.LastWatered)
	last = reg.History(p.ID)[0]
	assert.Equal(t, models.EventWatered, last.Type)
	assert.Equal(t, "import", last.Details["source"])

	assert.Len(t, reg.Plants(), 1)
}

func TestImportMatchWithoutEventCountsOnly(t *testing.T) {
	ctx := context.Background()
	reg, repo, _ := newTestRegistry(t)
	_, err := reg.Add(ctx, "North 1", "Tomato", 7)
	require.NoError(t, err)
	writes := repo.writes()

	res, err := reg.ImportBatch(ctx, []ImportRecord{{Field: "North 1", Species: "Tomato", Date: "2025-12-01"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, reg.Log().Len())
	assert.Equal(t, writes, repo.writes())
}

func TestImportMatchesPlantsCreatedInSameBatch(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	res, err := reg.ImportBatch(context.Background(), []ImportRecord{
		{Field: "F", Species: "Wheat", Date: "2025-01-01", Event: "problem"},
		{Field: "F", Species: "Wheat", Date: "2025-01-03", Event: "water"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	plants := reg.Plants()
	require.Len(t, plants, 1)
	assert.Equal(t, models.StatusOK, plants[0].Status)
	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), plants[0].LastWatered)

	history := reg.History(plants[0].ID)
	require.Len(t, history, 2)
	assert.Equal(t, models.EventWatered, history[0].Type)
	assert.Equal(t, models.EventAdded, history[1].Type)
}

func TestImportProblemCreatesProblemPlant(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithImportCycleDays(5))

	_, err := reg.ImportBatch(context.Background(), []ImportRecord{
		{Field: "F", Species: "Wheat", Date: "2025-06-01T10:30:00+02:00", Event: "problem"},
	})
	require.NoError(t, err)

	p := reg.Plants()[0]
	assert.Equal(t, models.StatusProblem, p.Status)
	assert.Equal(t, 5, p.WaterCycleDays)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), p.LastWatered)
}
