package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("download")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("download complete", "url", "http://localhost:9000/fix.zip")

	out := buf.String()
	if !strings.Contains(out, "msg=\"download complete\"") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=download") {
		t.Fatalf("expected component field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("installer")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)

	L("backup").Info("backed up", "file", "readme.txt")

	out := buf.String()
	if !strings.Contains(out, `"component":"backup"`) {
		t.Fatalf("expected JSON component field, got: %s", out)
	}
}

func TestWithFixAttachesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	WithFix(L("installer"), "guid-a", "HD Textures").Info("starting")

	out := buf.String()
	if !strings.Contains(out, "fixGuid=guid-a") {
		t.Fatalf("expected fixGuid field, got: %s", out)
	}
	if !strings.Contains(out, `fixName="HD Textures"`) {
		t.Fatalf("expected fixName field, got: %s", out)
	}
}
