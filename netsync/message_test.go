package netsync

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"lanewars/grid"
	"lanewars/sim"
)

func TestServerMessageChannel(t *testing.T) {
	tests := []struct {
		name string
		msg  ServerMessage
		want Channel
	}{
		{"load game", LoadGameMessage(3, 0.5), ReliableOrdered},
		{"player count", NPlayersMessage(2), ReliableOrdered},
		{"start game", StartGameMessage(StartGame{ID: "a", Color: sim.ColorRed, EnemyID: "b", EnemyColor: sim.ColorBlue}), ReliableOrdered},
		{"state", StateMessage(StatePlaying), ReliableOrdered},
		{"status", StatusMessage(1, Population{}), Unreliable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Channel(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStatusSurvivesEncoding(t *testing.T) {
	pop := Population{
		Units: map[sim.EntityID]UnitEntry{
			7: {Pos: grid.Pos{X: 10, Y: 20}, FlipX: true, Unit: sim.Unit{Type: sim.Lancer, Color: sim.ColorBlue, Health: 90, Action: sim.AttackOn(9)}},
		},
		Buildings: map[sim.EntityID]BuildingEntry{
			9: {Pos: grid.Pos{X: 48, Y: 336}, Building: sim.Building{Type: sim.Castle, Color: sim.ColorBlue, IsBase: true, Health: 1500}},
		},
	}
	b, err := EncodeServer(StatusMessage(2, pop))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeServer(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Kind != ServerStatus || got.Status.Speed != 2 {
		t.Fatalf("unexpected message %+v", got)
	}
	u := got.Status.Population.Units[7]
	if u.Unit.Type != sim.Lancer || u.Unit.Action.Target != 9 || !u.FlipX || u.Pos.Y != 20 {
		t.Fatalf("unit state lost in transit: %+v", u)
	}
	if !got.Status.Population.Buildings[9].Building.IsBase {
		t.Fatalf("building state lost in transit")
	}
}

func TestDecodeRejectsUnexpected(t *testing.T) {
	unknownKind, _ := msgpack.Marshal(map[string]any{"k": 99})
	badColor, _ := EncodeClient(ClientMessage{Kind: ClientShareColor, Color: sim.ColorNone})
	badUnit, _ := EncodeClient(ClientMessage{Kind: ClientSpawnUnit, Unit: sim.UnitType(42)})
	serverBytes, _ := EncodeServer(NPlayersMessage(2))
	clientBytes, _ := EncodeClient(SpawnUnit(sim.Archer))
	emptyStatus, _ := msgpack.Marshal(map[string]any{"k": uint8(ServerStatus)})

	t.Run("client", func(t *testing.T) {
		for name, b := range map[string][]byte{
			"garbage":          {0xc1, 0x00},
			"unknown kind":     unknownKind,
			"invalid color":    badColor,
			"invalid unit":     badUnit,
			"server direction": serverBytes,
		} {
			if _, err := DecodeClient(b); !errors.Is(err, ErrUnexpectedMessage) {
				t.Fatalf("%s: expected ErrUnexpectedMessage, got %v", name, err)
			}
		}
	})

	t.Run("server", func(t *testing.T) {
		for name, b := range map[string][]byte{
			"garbage":          {0xc1},
			"unknown kind":     unknownKind,
			"client direction": clientBytes,
			"missing payload":  emptyStatus,
		} {
			if _, err := DecodeServer(b); !errors.Is(err, ErrUnexpectedMessage) {
				t.Fatalf("%s: expected ErrUnexpectedMessage, got %v", name, err)
			}
		}
	})
}

func TestClientMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  ClientMessage
	}{
		{"share color", ShareColor(sim.ColorYellow)},
		{"state", ClientStateChange(StatePaused)},
		{"spawn warrior", SpawnUnit(sim.Warrior)},
		{"spawn priest", SpawnUnit(sim.Priest)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeClient(tt.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeClient(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.msg {
				t.Fatalf("expected %+v, got %+v", tt.msg, got)
			}
		})
	}
}
