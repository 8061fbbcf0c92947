package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeCreateRoom  MessageType = "create_room"
	MessageTypeJoinRoom    MessageType = "join_room"
	MessageTypeLeaveRoom   MessageType = "leave_room"
	MessageTypeStartGame   MessageType = "start_game"
	MessageTypeSubmitCards MessageType = "submit_cards"
	MessageTypePickWinner  MessageType = "pick_winner"
	MessageTypeGetState    MessageType = "get_state"
	MessageTypeListRooms   MessageType = "list_rooms"

	// Server to client messages
	MessageTypeRoomCreated MessageType = "room_created"
	MessageTypeJoined      MessageType = "joined"
	MessageTypeRoomState   MessageType = "room_state"
	MessageTypeRoomList    MessageType = "room_list"
	MessageTypeLeft        MessageType = "left"
	MessageTypeScores      MessageType = "scores"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
