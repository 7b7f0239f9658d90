package mtproto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnsupportedSessionFormat возвращается для нераспознанного файла сессии.
var ErrUnsupportedSessionFormat = errors.New("mtproto: неизвестный формат сессии")

// prepareSessionFile приводит файл сессии к формату gotd.
// Строковая сессия Telethon конвертируется и перезаписывается на месте.
func prepareSessionFile(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mtproto: чтение сессии: %w", err)
	}
	converted, changed, err := normalizeSession(raw)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := os.WriteFile(path, converted, 0o600); err != nil {
		return fmt.Errorf("mtproto: запись сессии: %w", err)
	}
	return nil
}

// normalizeSession возвращает сессию в JSON формате gotd и признак конвертации.
func normalizeSession(raw []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, errors.New("mtproto: файл сессии пуст")
	}

	var gotd struct {
		Version int `json:"Version"`
	}
	if err := json.Unmarshal(trimmed, &gotd); err == nil && gotd.Version != 0 {
		return trimmed, false, nil
	}

	converted, err := fromTelethonString(string(trimmed))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrUnsupportedSessionFormat, err)
	}
	return converted, true, nil
}

func fromTelethonString(s string) ([]byte, error) {
	s = strings.Trim(strings.TrimSpace(s), "\"'")
	data, err := session.TelethonSession(s)
	if err != nil {
		return nil, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if data.Addr != "" && len(data.Config.DCOptions) == 0 {
		if host, portStr, err := net.SplitHostPort(data.Addr); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
			}
		}
	}
	return json.Marshal(struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{Version: 1, Data: *data})
}
