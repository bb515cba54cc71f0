package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const playerIDFile = "player_id.txt"

// PlayerIDDir 는 <UserConfigDir>/<game> 경로.
func PlayerIDDir(game string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(base, game), nil
}

// LoadOrCreatePlayerID
// ------------------------------------------------------------
// dir/player_id.txt 에 저장된 익명 플레이어 ID 를 읽는다.
// 없거나 UUID 가 아니면 새 UUIDv4 를 만들어 저장한다.
// 저장에 실패해도 생성한 ID 는 돌려준다 (이번 실행 동안은 유효).
func LoadOrCreatePlayerID(dir string) (string, error) {
	path := filepath.Join(dir, playerIDFile)

	b, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(b))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return uuid.NewString(), fmt.Errorf("read player id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return id, fmt.Errorf("create player id dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return id, fmt.Errorf("write player id: %w", err)
	}
	return id, nil
}
