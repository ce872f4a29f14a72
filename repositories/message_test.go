package repositories

import (
	"log/slog"
	"testing"
	"time"

	"dispatch-chat/domain"
	"dispatch-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestMessageRepository(t *testing.T) (MessageRepository, *badger.DB) {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	repository, err := NewMessageRepository(db, slog.Default())
	req.NoError(err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository, db
}

func Test_Store_Multiple_Messages_Listed_In_Append_Order(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")
	at := time.UnixMilli(1_700_000_000_000).UTC()

	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		_, err := repository.Store(DiskMessage{
			Room:     room,
			DriverID: "42",
			Body:     body,
			At:       at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}

	fetched, _, err := repository.List(room, nil, nil)
	req.NoError(err)
	req.Len(fetched, len(bodies))
	req.Equal(bodies, lo.Map(fetched, func(m DiskMessage, _ int) string { return m.Body }))
}

func Test_Store_Assigns_Id_And_Returns_Stored_Record(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)

	stored, err := repository.Store(DiskMessage{Room: "5_42", DriverID: "42", Body: "Hello"})
	req.NoError(err)
	req.NotEqual("00000000-0000-0000-0000-000000000000", stored.ID.String())
	req.False(stored.At.IsZero())
	req.False(stored.Seen)
}

func Test_Store_Rejects_Empty_Body(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)

	for _, body := range []string{"", " ", "   ", "\t\n "} {
		_, err := repository.Store(DiskMessage{Room: "5_42", DriverID: "42", Body: body})
		req.ErrorIs(err, errors.ErrEmptyBody, "body %q", body)
	}

	fetched, _, err := repository.List("5_42", nil, nil)
	req.NoError(err)
	req.Empty(fetched)
}

func Test_Timestamp_Collision_Preserves_Append_Order(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")
	at := time.UnixMilli(1_700_000_000_000).UTC()

	// All three share the same timestamp; the store-assigned sequence
	// must keep them in submission order.
	for _, body := range []string{"a", "b", "c"} {
		_, err := repository.Store(DiskMessage{Room: room, DriverID: "42", Body: body, At: at})
		req.NoError(err)
	}

	fetched, _, err := repository.List(room, nil, nil)
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"},
		lo.Map(fetched, func(m DiskMessage, _ int) string { return m.Body }))
}

func Test_List_Returns_Most_Recent_Page_Ascending_With_Cursor_For_Older(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")
	at := time.UnixMilli(1_700_000_000_000).UTC()

	for i := 0; i < 5; i++ {
		_, err := repository.Store(DiskMessage{
			Room:     room,
			DriverID: "42",
			Body:     string(rune('a' + i)),
			At:       at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	limit := 2
	page, cursor, err := repository.List(room, &limit, nil)
	req.NoError(err)
	req.Equal([]string{"d", "e"}, lo.Map(page, func(m DiskMessage, _ int) string { return m.Body }))
	req.NotNil(cursor)

	older, cursor, err := repository.List(room, &limit, cursor)
	req.NoError(err)
	req.Equal([]string{"b", "c"}, lo.Map(older, func(m DiskMessage, _ int) string { return m.Body }))
	req.NotNil(cursor)

	// The last page exhausts the log: no cursor, pagination is over.
	oldest, cursor, err := repository.List(room, &limit, cursor)
	req.NoError(err)
	req.Equal([]string{"a"}, lo.Map(oldest, func(m DiskMessage, _ int) string { return m.Body }))
	req.Nil(cursor)
}

func Test_List_Without_Limit_Has_No_Cursor(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")

	_, err := repository.Store(DiskMessage{Room: room, DriverID: "42", Body: "only one"})
	req.NoError(err)

	fetched, cursor, err := repository.List(room, nil, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Nil(cursor)
}

func Test_List_Empty_Room_Is_Not_An_Error(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)

	fetched, cursor, err := repository.List("9_9", nil, nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}

func Test_MarkSeen_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")

	for _, body := range []string{"one", "two"} {
		_, err := repository.Store(DiskMessage{Room: room, DriverID: "42", Body: body})
		req.NoError(err)
	}

	req.NoError(repository.MarkSeen(room))
	req.NoError(repository.MarkSeen(room))

	fetched, _, err := repository.List(room, nil, nil)
	req.NoError(err)
	for _, message := range fetched {
		req.True(message.Seen)
	}
}

func Test_MarkSeen_On_Unknown_Room_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)

	req.NoError(repository.MarkSeen("9_9"))
}

func Test_HasUnseen_Follows_The_Seen_Flag(t *testing.T) {
	req := require.New(t)
	repository, _ := newTestMessageRepository(t)
	room := domain.RoomID("5_42")

	unread, err := repository.HasUnseen(room)
	req.NoError(err)
	req.False(unread)

	_, err = repository.Store(DiskMessage{Room: room, DriverID: "42", Body: "ping"})
	req.NoError(err)

	unread, err = repository.HasUnseen(room)
	req.NoError(err)
	req.True(unread)

	req.NoError(repository.MarkSeen(room))
	unread, err = repository.HasUnseen(room)
	req.NoError(err)
	req.False(unread)
}

func Test_List_Skips_Malformed_Records_And_Counts_Them(t *testing.T) {
	req := require.New(t)
	repository, db := newTestMessageRepository(t)
	room := domain.RoomID("5_42")

	_, err := repository.Store(DiskMessage{Room: room, DriverID: "42", Body: "valid"})
	req.NoError(err)

	// A partially-written record straight into the room's key range.
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("msg:5_42:0000000000000000001:000000000001"), []byte("{not json"))
	})
	req.NoError(err)

	fetched, _, err := repository.List(room, nil, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("valid", fetched[0].Body)
	req.Equal(uint64(1), repository.SkippedRecords())
}
