package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestWriteMmCIF_BlocksAndLoops(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMmCIF(&buf, []ChargeSet{
		{
			Method:     "eem",
			Parameters: "ccd2016",
			Charges: map[string][]float64{
				"MOL_B": {0.25, -0.25},
				"MOL_A": {0.5},
			},
		},
		{
			Method:  "qeq",
			Charges: map[string][]float64{"MOL_A": {0.125}},
		},
	})
	if err != nil {
		t.Fatalf("WriteMmCIF: %v", err)
	}
	out := buf.String()

	// One block per molecule, in lexicographic order.
	if !strings.Contains(out, "data_MOL_A\n") || !strings.Contains(out, "data_MOL_B\n") {
		t.Fatalf("missing data blocks:\n%s", out)
	}
	if strings.Index(out, "data_MOL_A") > strings.Index(out, "data_MOL_B") {
		t.Fatal("blocks must be in name order")
	}

	// Meta loop: one row per charge set, provenance includes parameters.
	if !strings.Contains(out, "1 'empirical' 'eem/ccd2016'\n") {
		t.Fatalf("missing parameterized meta row:\n%s", out)
	}
	if !strings.Contains(out, "2 'empirical' 'qeq'\n") {
		t.Fatalf("missing parameter-free meta row:\n%s", out)
	}

	// Charges loop rows: 1-based type and atom ids, 4 decimals.
	for _, row := range []string{
		"1 1 0.5000\n",
		"2 1 0.1250\n",
		"1 1 0.2500\n",
		"1 2 -0.2500\n",
	} {
		if !strings.Contains(out, row) {
			t.Errorf("missing charge row %q in:\n%s", row, out)
		}
	}
}

func TestWriteMmCIF_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMmCIF(&buf, nil); err != nil {
		t.Fatalf("WriteMmCIF: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("no molecules, no output, got:\n%s", buf.String())
	}
}

func TestSanitizeDataName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"NSC_100000", "NSC_100000"},
		{"my mol (2)", "my_mol__2_"},
		{"a.b-c", "a.b-c"},
		{"", "molecule"},
	}
	for _, tc := range cases {
		if got := sanitizeDataName(tc.in); got != tc.want {
			t.Errorf("sanitizeDataName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJSONArtifact(t *testing.T) {
	data, err := JSONArtifact(map[string]int{"total_atoms": 3})
	if err != nil {
		t.Fatalf("JSONArtifact: %v", err)
	}
	var back map[string]int
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["total_atoms"] != 3 {
		t.Fatalf("round-trip wrong: %v", back)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Fatal("artifact should be indented")
	}
}

func TestWriteZip(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZip(&buf, []ZipEntry{
		{Name: "a.fw2.cif", Data: []byte("data_A\n")},
		{Name: "computation.json", Data: []byte("{}")},
	})
	if err != nil {
		t.Fatalf("WriteZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "a.fw2.cif" || zr.File[1].Name != "computation.json" {
		t.Fatalf("unexpected entries: %+v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	content, _ := io.ReadAll(rc)
	rc.Close()
	if string(content) != "data_A\n" {
		t.Fatalf("entry content wrong: %q", content)
	}
}
