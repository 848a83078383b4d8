package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/lectora/pkg/audio"
)

// runCLI invokes run and restores the default logger afterwards. Tests in
// this package do not run in parallel because run replaces it.
func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func decode(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", s, err)
	}
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"grade"}, want: 2},
		{name: "help", args: []string{"-h"}, want: 0},
		{name: "bad flag", args: []string{"-verbose"}, want: 2},
		{name: "score without reference", args: []string{"score"}, want: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tc.args...)
			if code != tc.want {
				t.Errorf("run(%v) = %d, want %d (stderr: %s)", tc.args, code, tc.want, stderr)
			}
		})
	}
}

func TestRun_MissingExplicitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	code, _, stderr := runCLI(t, "-config", path, "score", "-reference", "hola")
	if code != 1 {
		t.Errorf("run = %d, want 1", code)
	}
	if !strings.Contains(stderr, "not found") {
		t.Errorf("stderr = %q, want a not found hint", stderr)
	}
}

func TestRun_Score(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "lectora.yaml", "store: {driver: memory}\n")
	code, stdout, stderr := runCLI(t, "-config", cfg, "score",
		"-reference", "El perro corre.",
		"-hypothesis", "el perro",
		"-duration", "2s",
	)
	if code != 0 {
		t.Fatalf("run = %d, stderr: %s", code, stderr)
	}

	var got struct {
		Result struct {
			Accuracy float64 `json:"accuracy"`
			Errors   []struct {
				Expected string `json:"expected"`
			} `json:"errors"`
		} `json:"result"`
	}
	decode(t, stdout, &got)
	if got.Result.Accuracy >= 100 || got.Result.Accuracy < 50 {
		t.Errorf("Accuracy = %v, want in [50,100)", got.Result.Accuracy)
	}
	if len(got.Result.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(got.Result.Errors))
	}
}

type reportJSON struct {
	Evaluation struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"evaluation"`
	Result struct {
		Accuracy float64 `json:"accuracy"`
	} `json:"result"`
	Exercises []exerciseJSON `json:"exercises"`
}

type exerciseJSON struct {
	ID          string   `json:"id"`
	TargetWords []string `json:"target_words"`
	Completed   bool     `json:"completed"`
}

func TestRun_Workflow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "lectora.yaml", `
store:
  driver: sqlite
  dsn: `+filepath.Join(dir, "lectora.db")+`
transcription:
  provider:
    name: mock
    options: {text: "el gato negro duerme"}
evaluation:
  workers: 2
`)
	cat := writeFile(t, dir, "clase.yaml", `
class: {name: "2º A"}
students:
  - {id: luz, name: "Luz Pérez", grade: 2}
contents:
  - {id: gato, title: "El gato", text: "El gato negro duerme."}
`)

	// import
	code, stdout, stderr := runCLI(t, "-config", cfg, "import", cat)
	if code != 0 {
		t.Fatalf("import = %d, stderr: %s", code, stderr)
	}
	var sum struct{ Students, Contents int }
	decode(t, stdout, &sum)
	if sum.Students != 1 || sum.Contents != 1 {
		t.Errorf("import summary = %+v, want 1 student and 1 content", sum)
	}

	// evaluate a supplied transcript
	code, stdout, stderr = runCLI(t, "-config", cfg, "evaluate",
		"-student", "luz", "-content", "gato",
		"-text", "el pato negro duerme", "-duration", "4s",
	)
	if code != 0 {
		t.Fatalf("evaluate = %d, stderr: %s", code, stderr)
	}
	var rep reportJSON
	decode(t, stdout, &rep)
	if rep.Evaluation.ID == "" {
		t.Fatal("evaluation id is empty")
	}
	var drill *exerciseJSON
	for i, ex := range rep.Exercises {
		if len(ex.TargetWords) == 1 && ex.TargetWords[0] == "gato" {
			drill = &rep.Exercises[i]
		}
	}
	if drill == nil {
		t.Fatalf("Exercises = %+v, want a drill on gato", rep.Exercises)
	}

	// exercises
	code, stdout, stderr = runCLI(t, "-config", cfg, "exercises", "-student", "luz", "-pending")
	if code != 0 {
		t.Fatalf("exercises = %d, stderr: %s", code, stderr)
	}
	var pending []exerciseJSON
	decode(t, stdout, &pending)
	if len(pending) != len(rep.Exercises) {
		t.Errorf("len(pending) = %d, want %d", len(pending), len(rep.Exercises))
	}

	// practice
	code, stdout, stderr = runCLI(t, "-config", cfg, "practice",
		"-student", "luz", "-exercise", drill.ID, "-text", "gato", "-duration", "1s",
	)
	if code != 0 {
		t.Fatalf("practice = %d, stderr: %s", code, stderr)
	}
	var att struct {
		Improved bool `json:"improved"`
	}
	decode(t, stdout, &att)
	if !att.Improved {
		t.Errorf("practice improved = false, want true")
	}

	// derive
	code, stdout, stderr = runCLI(t, "-config", cfg, "derive", "-evaluation", rep.Evaluation.ID)
	if code != 0 {
		t.Fatalf("derive = %d, stderr: %s", code, stderr)
	}
	var derived []exerciseJSON
	decode(t, stdout, &derived)
	if len(derived) == 0 {
		t.Error("derive returned no exercises")
	}

	// evaluate recordings through the mock transcriber
	clip := audio.Clip{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	wav1 := writeFile(t, dir, "uno.wav", string(audio.EncodeWAV(clip)))
	wav2 := writeFile(t, dir, "dos.wav", string(audio.EncodeWAV(clip)))
	code, stdout, stderr = runCLI(t, "-config", cfg, "evaluate",
		"-student", "luz", "-content", "gato", wav1, wav2,
	)
	if code != 0 {
		t.Fatalf("evaluate recordings = %d, stderr: %s", code, stderr)
	}
	var items []struct {
		Report reportJSON `json:"report"`
		Error  string     `json:"error"`
	}
	decode(t, stdout, &items)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for i, it := range items {
		if it.Error != "" {
			t.Errorf("items[%d].Error = %q", i, it.Error)
		}
		if it.Report.Result.Accuracy != 100 {
			t.Errorf("items[%d] accuracy = %v, want 100", i, it.Report.Result.Accuracy)
		}
	}

	// unknown student
	code, _, stderr = runCLI(t, "-config", cfg, "evaluate",
		"-student", "nadie", "-content", "gato", "-text", "el gato",
	)
	if code != 1 || !strings.Contains(stderr, "not found") {
		t.Errorf("evaluate unknown student = %d, stderr %q, want 1 and not found", code, stderr)
	}
}
