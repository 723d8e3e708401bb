package summary

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const output = "id,year,text,score,reason\n" +
	"600000,2020,a,1,需求回升\n" +
	"600001,2020,b,0,无相关信息\n" +
	"600000,2020,c,-1,出口下滑\n" +
	"600000,2020,d,1,需求回升\n" +
	"600000,2021,e,0,政策平稳\n" +
	"600001,2020,f,0,无相关信息\n"

func TestAggregate(t *testing.T) {
	groups, err := Aggregate(strings.NewReader(output))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}

	tests := []struct {
		id, year  string
		sum, rows int
		relevant  int
		typical   string
	}{
		{"600000", "2020", 1, 3, 3, "需求回升"},
		{"600001", "2020", 0, 2, 0, "无相关信息"},
		{"600000", "2021", 0, 1, 0, "政策平稳"},
	}
	for i, tt := range tests {
		g := groups[i]
		if g.ID != tt.id || g.Year != tt.year {
			t.Errorf("group %d key = %s/%s, want %s/%s", i, g.ID, g.Year, tt.id, tt.year)
		}
		if g.ScoreSum != tt.sum || g.Rows != tt.rows || g.RelevantRows != tt.relevant {
			t.Errorf("group %d = sum %d rows %d relevant %d", i, g.ScoreSum, g.Rows, g.RelevantRows)
		}
		if g.TypicalReason != tt.typical {
			t.Errorf("group %d typical reason = %q, want %q", i, g.TypicalReason, tt.typical)
		}
	}
}

func TestMode_TieBreak(t *testing.T) {
	got := mode(map[string]int{"b": 2, "a": 2, "c": 1})
	if got != "a" {
		t.Errorf("mode = %q, want a", got)
	}
}

func TestAggregate_Errors(t *testing.T) {
	bad := []string{
		"id,year,text,score,reason\n1,2020,x,high,r\n",
		"id,year,text,score,reason\n1,2020,x\n",
	}
	for _, in := range bad {
		if _, err := Aggregate(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}

	groups, err := Aggregate(strings.NewReader(""))
	if err != nil || len(groups) != 0 {
		t.Errorf("empty input: %v, %v", groups, err)
	}
}

func TestSummarize(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/results.csv", []byte(output), 0o644); err != nil {
		t.Fatal(err)
	}

	path, n, err := Summarize(fs, "/data/results.csv")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if path != "/data/results_summary.csv" || n != 3 {
		t.Errorf("path = %s, groups = %d", path, n)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	want := "id,year,score_sum,rows,relevant_rows,typical_reason\n" +
		"600000,2020,1,3,3,需求回升\n" +
		"600001,2020,0,2,0,无相关信息\n" +
		"600000,2021,0,1,0,政策平稳\n"
	if string(data) != want {
		t.Errorf("summary = %q, want %q", data, want)
	}
}
