package domain

type Command interface {
	RoomID() RoomID
}

type SendMessageCommand struct {
	Room RoomID
	Body string
}

func (c SendMessageCommand) RoomID() RoomID {
	return c.Room
}

type ListMessagesCommand struct {
	Room   RoomID
	Limit  *int
	Cursor *string
}

func (c ListMessagesCommand) RoomID() RoomID {
	return c.Room
}
