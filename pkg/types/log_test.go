package types

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeLine_SingleLine(t *testing.T) {
	b, err := EncodeLine(PredictionRecord{Unit: 3, Cycle: 41, RUL: 112.5})
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}
	got := string(b)
	if got != `{"unit":3,"cycle":41,"rul":112.5}`+"\n" {
		t.Errorf("EncodeLine = %q", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Errorf("expected exactly one newline, got %q", got)
	}
}

func TestEncodeLine_OmitsZeroCycle(t *testing.T) {
	b, err := EncodeLine(PredictionRecord{Unit: 7, RUL: 10})
	if err != nil {
		t.Fatalf("EncodeLine: %v", err)
	}
	if strings.Contains(string(b), "cycle") {
		t.Errorf("cycle should be omitted, got %q", b)
	}
}

func TestScanLog_SkipsBlankAndMalformed(t *testing.T) {
	in := strings.Join([]string{
		`{"unit":1,"cycle":1,"rul":120}`,
		``,
		`{"unit":1,"cycle":2,"rul":90}`,
		`{"unit":0,"cycle":1,"rul":5}`,
		`{"unit":1,"cycle":2}`,
		`{"unit":2,"cyc`,
	}, "\n")

	var got []PredictionRecord
	st, err := ScanLog(strings.NewReader(in), func(r PredictionRecord) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanLog: %v", err)
	}
	if st.Lines != 5 || st.Records != 2 || st.Malformed != 3 {
		t.Errorf("stats = %+v, want Lines=5 Records=2 Malformed=3", st)
	}
	if len(got) != 2 || got[1].RUL != 90 {
		t.Errorf("records = %+v", got)
	}
}

func TestDecodeLine_ZeroRULIsNotMissing(t *testing.T) {
	rec, err := DecodeLine([]byte(`{"unit":3,"cycle":9,"rul":0}`))
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if rec.Unit != 3 || rec.Cycle != 9 || rec.RUL != 0 {
		t.Errorf("record = %+v", rec)
	}
	if _, err := DecodeLine([]byte(`{"unit":3,"cycle":9}`)); err == nil {
		t.Error("line without rul accepted")
	}
}

func TestScanLog_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	in := `{"unit":1,"rul":1}` + "\n" + `{"unit":2,"rul":2}` + "\n"
	calls := 0
	_, err := ScanLog(strings.NewReader(in), func(PredictionRecord) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReadLogFile_Missing(t *testing.T) {
	_, err := ReadLogFile(filepath.Join(t.TempDir(), "nope.log"), func(PredictionRecord) error { return nil })
	if !errors.Is(err, ErrNoLog) {
		t.Fatalf("err = %v, want ErrNoLog", err)
	}
}

func TestReadLogFile_ReadsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.log")
	content := `{"unit":2,"cycle":1,"rul":150}` + "\n" + `{"unit":2,"cycle":2,"rul":149}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	var cycles []int
	if _, err := ReadLogFile(path, func(r PredictionRecord) error {
		cycles = append(cycles, r.Cycle)
		return nil
	}); err != nil {
		t.Fatalf("ReadLogFile: %v", err)
	}
	if len(cycles) != 2 || cycles[0] != 1 || cycles[1] != 2 {
		t.Errorf("cycles = %v, want [1 2]", cycles)
	}
}
