package postgis

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil), mock
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, User: "geo", Password: "secret", DBName: "mediamap"}
	assert.Equal(t, "host=localhost port=5432 user=geo password=secret dbname=mediamap sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestBulkInsert(t *testing.T) {
	store, mock := newMock(t)

	points := []models.MediaPoint{
		{ID: "1", Longitude: -87.07, Latitude: 45.26, Region: "Wisconsin", Media: &models.Media{Name: "Door County"}},
		{ID: "2", Longitude: -6.85, Latitude: 34.03, City: "Rabat"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO media_points"))
	prep.ExpectExec().
		WithArgs(0, "1", -87.07, 45.26, "", "Wisconsin", "", "", `{"name":"Door County"}`, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(1, "2", -6.85, 34.03, "Rabat", "", "", "", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var progress [][2]int
	store.OnProgress(func(done, total int) { progress = append(progress, [2]int{done, total}) })

	require.NoError(t, store.BulkInsert(context.Background(), points))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, [][2]int{{2, 2}}, progress)
}

func TestBulkInsertRollsBack(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO media_points"))
	prep.ExpectExec().WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := store.BulkInsert(context.Background(), []models.MediaPoint{{ID: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert point 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadKeepsOrder(t *testing.T) {
	store, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "x", "y", "city", "region", "country", "natural_feature", "media", "attributes"}).
		AddRow("3", -68.81, 44.38, "Castine", "Maine", "United States", "", `{"name":"Castine","release_year":2001}`, nil).
		AddRow("1", -87.07, 45.26, "", "Wisconsin", "United States", "Green Bay", nil, `{"airtable":"rec1"}`)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY position")).WillReturnRows(rows)

	points, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "3", points[0].ID)
	require.NotNil(t, points[0].Media)
	assert.Equal(t, 2001, points[0].Media.ReleaseYear)
	assert.Nil(t, points[0].Attributes)

	assert.Equal(t, "1", points[1].ID)
	assert.Nil(t, points[1].Media)
	assert.Equal(t, "Green Bay", points[1].NaturalFeature)
	assert.Equal(t, "rec1", points[1].Attributes["airtable"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryBox(t *testing.T) {
	store, mock := newMock(t)

	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: 40, Lon: -90},
		TopRight:   models.Location{Lat: 50, Lon: -60},
	}
	mock.ExpectQuery(regexp.QuoteMeta("ST_MakeEnvelope")).
		WithArgs(-90.0, 40.0, -60.0, 50.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "x", "y", "city", "region", "country", "natural_feature", "media", "attributes"}))

	points, err := store.QueryBox(context.Background(), box)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("pg_size_pretty")).WillReturnError(errors.New("relation does not exist"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM media_points")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0 bytes", stats["table_size"])
	assert.Equal(t, int64(3), stats["row_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
