package collate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"timetable-collator/internal/model"
)

func TestParseWorkload(t *testing.T) {
	cases := []struct {
		input string
		want  model.Workload
	}{
		{"2.5-0.5-0-3-4", model.Workload{Hours: []float64{2.5, 0.5, 0, 3, 4}}},
		{"3-1-0-3-3", model.Workload{Hours: []float64{3, 1, 0, 3, 3}}},
		{" 2 - 1 - 1 - 3 - 3 ", model.Workload{Hours: []float64{2, 1, 1, 3, 3}}},
		{"2–1–0–3–4", model.Workload{Hours: []float64{2, 1, 0, 3, 4}}},
		{"2-1-1-3-3 (Lab sessions alternate weeks)", model.Workload{Hours: []float64{2, 1, 1, 3, 3}}},
		{"16 weeks of industrial attachment", model.Workload{Raw: "16 weeks of industrial attachment"}},
		{"NA-NA-NA-NA-10", model.Workload{Raw: "NA-NA-NA-NA-10"}},
		{"2-1-1-3", model.Workload{Raw: "2-1-1-3"}},
		{"2-1-1-3-3-1", model.Workload{Raw: "2-1-1-3-3-1"}},
		{"-1-1-1-1-1", model.Workload{Raw: "-1-1-1-1-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseWorkload(tc.input)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseWorkload(%q) 不符 (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}
