package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/openpatata/scrapers/internal/record"
)

func TestUpsertInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	doc := record.Doc{
		"date":    "2020-05-01",
		"heading": "H",
	}

	mock.ExpectExec("INSERT INTO records").
		WithArgs("questions", "q1", []byte(`{"date":"2020-05-01","heading":"H"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Upsert(context.Background(), "questions", "q1", doc)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	err = store.Upsert(context.Background(), "questions", "", record.Doc{})
	var storeErr *record.StoreError
	require.ErrorAs(t, err, &storeErr)
}

func TestGetReturnsDocument(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"date":"2020-05-01","sitting":7}`))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("plenary_sittings", "2020-05-01").
		WillReturnRows(rows)

	doc, ok, err := store.Get(context.Background(), "plenary_sittings", "2020-05-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2020-05-01", doc.ID())
	require.Equal(t, "2020-05-01", doc["date"])
	// JSON numbers come back narrowed to int when integral.
	require.Equal(t, 7, doc["sitting"])
}

func TestGetAbsentIsNotAnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("questions", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}))

	_, ok, err := store.Get(context.Background(), "questions", "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllOrdersByID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "doc"}).
		AddRow("a", []byte(`{"title":"A"}`)).
		AddRow("b", []byte(`{"title":"B"}`))
	mock.ExpectQuery("SELECT id, doc FROM records").
		WithArgs("bills").
		WillReturnRows(rows)

	docs, err := store.All(context.Background(), "bills")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "a", docs[0].ID())
	require.Equal(t, "b", docs[1].ID())
}

func TestUpsertSurfacesStoreFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "records")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO records").
		WithArgs("bills", "23.01.001", []byte(`{}`)).
		WillReturnError(errors.New("connection reset"))

	err = store.Upsert(context.Background(), "bills", "23.01.001", record.Doc{})
	var storeErr *record.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "upsert", storeErr.Op)
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "records; DROP TABLE records")
	require.Error(t, err)
}
