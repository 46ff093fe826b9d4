package sim

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// SaveGame 存档头：至少包含配置；单位与建筑不在此列
type SaveGame struct {
	Settings     Settings `msgpack:"settings"`
	Turn         uint64   `msgpack:"turn"`
	PColonizable float64  `msgpack:"p_colonizable"`
}

// WriteSave 以 msgpack 写出存档
func WriteSave(w io.Writer, s SaveGame) error {
	if err := msgpack.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	return nil
}

// ReadSave 读取存档
func ReadSave(r io.Reader) (SaveGame, error) {
	var s SaveGame
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return SaveGame{}, fmt.Errorf("decode save: %w", err)
	}
	if s.Settings.Speed <= 0 {
		s.Settings.Speed = 1
	}
	return s, nil
}
