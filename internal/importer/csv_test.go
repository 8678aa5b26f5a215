package importer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/storage"

	"golang.org/x/text/encoding/unicode"
)

func TestReadBindings_CommaSeparated(t *testing.T) {
	in := "Name,MAC,Notes\nKitchen,AA:BB,x\n,CC:DD,\n,,empty\nLab,AA:BB,dup\n"
	got, err := ReadBindings(strings.NewReader(in), 0)
	if err != nil {
		t.Fatalf("ReadBindings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %+v", got)
	}
	if got[0].MAC != "AA:BB" || got[0].Name != "Lab" {
		t.Errorf("duplicate MAC should keep the last name: %+v", got[0])
	}
	if got[1].MAC != "CC:DD" || got[1].Name != "" {
		t.Errorf("unexpected binding: %+v", got[1])
	}
}

func TestReadBindings_ThaiHeadersUTF16(t *testing.T) {
	text := "หมายเลข MAC\tชื่อ\nE4:65:B8:00:11:22\tห้อง Lab ชั้น 2\n"
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xFE}) {
		t.Fatal("expected a UTF-16 LE BOM")
	}

	got, err := ReadBindings(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatalf("ReadBindings: %v", err)
	}
	if len(got) != 1 || got[0].MAC != "E4:65:B8:00:11:22" || got[0].Name != "ห้อง Lab ชั้น 2" {
		t.Fatalf("unexpected bindings: %+v", got)
	}
}

func TestReadBindings_MissingMACColumn(t *testing.T) {
	_, err := ReadBindings(strings.NewReader("name,room\nA,B\n"), ',')
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}

func TestReadFileAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.csv")
	if err := os.WriteFile(path, []byte("\xEF\xBB\xBFmac,name\nAA,Roof\nBB,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bindings, err := ReadFile(path, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	ctx := context.Background()
	p, err := storage.NewProvider(ctx, &config.Storage{SQLite: &config.SQLLiteStorage{Path: storage.MemoryDatabase}})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	n, err := Apply(ctx, p, bindings)
	if err != nil || n != 2 {
		t.Fatalf("Apply: %d %v", n, err)
	}
	s, err := p.GetSensor(ctx, "BB")
	if err != nil {
		t.Fatal(err)
	}
	if *s.Name != "BB" || s.Status != storage.SensorStatusActive {
		t.Errorf("unnamed MAC should be named after itself: %+v", s)
	}
}
