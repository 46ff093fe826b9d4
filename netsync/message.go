package netsync

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"lanewars/sim"
)

// ErrUnexpectedMessage 解码得到的消息不合法或不属于该方向；调用方丢弃并记录
var ErrUnexpectedMessage = errors.New("netsync: unexpected message")

// GameState 对局所处阶段，双方通过 State 消息同步
type GameState uint8

const (
	StateMenu GameState = iota
	StateLobby
	StatePlaying
	StatePaused
	StateGameOver
)

func (s GameState) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StateLobby:
		return "lobby"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Valid 是否为已知阶段
func (s GameState) Valid() bool { return s <= StateGameOver }

// Channel 逻辑通道
type Channel uint8

const (
	ReliableOrdered Channel = iota
	Unreliable
)

func (c Channel) String() string {
	if c == Unreliable {
		return "unreliable"
	}
	return "reliable_ordered"
}

// ClientKind 客户端 → 服务端 消息种类
type ClientKind uint8

const (
	ClientShareColor ClientKind = iota + 1
	ClientState
	ClientSpawnUnit
)

func (k ClientKind) String() string {
	switch k {
	case ClientShareColor:
		return "share_color"
	case ClientState:
		return "state"
	case ClientSpawnUnit:
		return "spawn_unit"
	default:
		return fmt.Sprintf("client_kind(%d)", uint8(k))
	}
}

// ClientMessage 客户端消息，总是走可靠有序通道
type ClientMessage struct {
	Kind  ClientKind   `msgpack:"k"`
	Color sim.Color    `msgpack:"c,omitempty"`
	State GameState    `msgpack:"s,omitempty"`
	Unit  sim.UnitType `msgpack:"u,omitempty"`
}

func ShareColor(c sim.Color) ClientMessage {
	return ClientMessage{Kind: ClientShareColor, Color: c}
}

func ClientStateChange(s GameState) ClientMessage {
	return ClientMessage{Kind: ClientState, State: s}
}

func SpawnUnit(t sim.UnitType) ClientMessage {
	return ClientMessage{Kind: ClientSpawnUnit, Unit: t}
}

// ServerKind 服务端 → 客户端 消息种类
type ServerKind uint8

// 与 ClientKind 不重叠：方向错误的消息解码即失败
const (
	ServerLoadGame ServerKind = iota + 16
	ServerNPlayers
	ServerStartGame
	ServerState
	ServerStatus
)

func (k ServerKind) String() string {
	switch k {
	case ServerLoadGame:
		return "load_game"
	case ServerNPlayers:
		return "n_players"
	case ServerStartGame:
		return "start_game"
	case ServerState:
		return "state"
	case ServerStatus:
		return "status"
	default:
		return fmt.Sprintf("server_kind(%d)", uint8(k))
	}
}

// LoadGame 读档回应
type LoadGame struct {
	Turn         uint64  `msgpack:"turn"`
	PColonizable float64 `msgpack:"p_colonizable"`
}

// StartGame 开局分配：自己与对手的身份和颜色
type StartGame struct {
	ID         string    `msgpack:"id"`
	Color      sim.Color `msgpack:"color"`
	EnemyID    string    `msgpack:"enemy_id"`
	EnemyColor sim.Color `msgpack:"enemy_color"`
}

// Status 周期性世界快照
type Status struct {
	Speed      float64    `msgpack:"speed"`
	Population Population `msgpack:"population"`
}

// ServerMessage 服务端消息；Kind 决定哪个字段有效
type ServerMessage struct {
	Kind     ServerKind `msgpack:"k"`
	Load     *LoadGame  `msgpack:"l,omitempty"`
	NPlayers int        `msgpack:"n,omitempty"`
	Start    *StartGame `msgpack:"g,omitempty"`
	State    GameState  `msgpack:"s,omitempty"`
	Status   *Status    `msgpack:"st,omitempty"`
}

func LoadGameMessage(turn uint64, pColonizable float64) ServerMessage {
	return ServerMessage{Kind: ServerLoadGame, Load: &LoadGame{Turn: turn, PColonizable: pColonizable}}
}

func NPlayersMessage(n int) ServerMessage {
	return ServerMessage{Kind: ServerNPlayers, NPlayers: n}
}

func StartGameMessage(s StartGame) ServerMessage {
	return ServerMessage{Kind: ServerStartGame, Start: &s}
}

func StateMessage(s GameState) ServerMessage {
	return ServerMessage{Kind: ServerState, State: s}
}

func StatusMessage(speed float64, pop Population) ServerMessage {
	return ServerMessage{Kind: ServerStatus, Status: &Status{Speed: speed, Population: pop}}
}

// Channel Status 走不可靠通道，其余走可靠有序通道
func (m ServerMessage) Channel() Channel {
	if m.Kind == ServerStatus {
		return Unreliable
	}
	return ReliableOrdered
}

// EncodeClient 编码客户端消息
func EncodeClient(m ClientMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return b, nil
}

// DecodeClient 解码并校验客户端消息
func DecodeClient(b []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
	}
	switch m.Kind {
	case ClientShareColor:
		if !m.Color.Valid() {
			return ClientMessage{}, fmt.Errorf("%w: color %d", ErrUnexpectedMessage, m.Color)
		}
	case ClientState:
		if !m.State.Valid() {
			return ClientMessage{}, fmt.Errorf("%w: state %d", ErrUnexpectedMessage, m.State)
		}
	case ClientSpawnUnit:
		if !m.Unit.Valid() {
			return ClientMessage{}, fmt.Errorf("%w: unit %d", ErrUnexpectedMessage, m.Unit)
		}
	default:
		return ClientMessage{}, fmt.Errorf("%w: %s", ErrUnexpectedMessage, m.Kind)
	}
	return m, nil
}

// EncodeServer 编码服务端消息
func EncodeServer(m ServerMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind, err)
	}
	return b, nil
}

// DecodeServer 解码并校验服务端消息
func DecodeServer(b []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrUnexpectedMessage, err)
	}
	ok := false
	switch m.Kind {
	case ServerLoadGame:
		ok = m.Load != nil
	case ServerNPlayers:
		ok = m.NPlayers >= 0
	case ServerStartGame:
		ok = m.Start != nil && m.Start.Color.Valid() && m.Start.EnemyColor.Valid()
	case ServerState:
		ok = m.State.Valid()
	case ServerStatus:
		ok = m.Status != nil
	}
	if !ok {
		return ServerMessage{}, fmt.Errorf("%w: %s", ErrUnexpectedMessage, m.Kind)
	}
	return m, nil
}
