package problems

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDiscoverAndFilter(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"counter", "adder", ".git"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, n), 0o755))
	}
	write(t, filepath.Join(root, "README.md"), "x")

	names, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"adder", "counter"}, names)

	got, err := Filter(names, []string{"counter"})
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, got)

	_, err = Filter(names, []string{"fifo"})
	assert.ErrorContains(t, err, "fifo")

	_, err = Discover(filepath.Join(root, "nope"))
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestLoadAndMutants(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, SpecFile), "adds")
	write(t, filepath.Join(dir, "mutant_0.v"), "module a; endmodule")
	write(t, filepath.Join(dir, "mutant_2.v"), "module a; endmodule // 2")
	write(t, filepath.Join(dir, "mutant_10.v"), "module a; endmodule // 10")
	write(t, filepath.Join(dir, TestbenchFile), "module tb; endmodule")
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	files, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, files, 4)
	assert.Equal(t, "adds", files[SpecFile])
	assert.NotContains(t, files, TestbenchFile)

	ms, err := Mutants(dir)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, []int{0, 2, 10}, []int{ms[0].ID, ms[1].ID, ms[2].ID})
	assert.Equal(t, filepath.Join(dir, "mutant_10.v"), ms[2].Path)
}

func TestLoadRequiresSpec(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "mutant_0.v"), "module a; endmodule")
	_, err := Load(dir)
	assert.ErrorContains(t, err, SpecFile)
}

func TestReadAnswer(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadAnswer(dir)
	assert.ErrorIs(t, err, ErrNoAnswer)

	write(t, filepath.Join(dir, AnswerFile), "3\n")
	id, err := ReadAnswer(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	write(t, filepath.Join(dir, AnswerFile), "three")
	_, err = ReadAnswer(dir)
	assert.ErrorIs(t, err, ErrBadAnswer)
}

func TestCheckAnswerTree(t *testing.T) {
	answers := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(answers, "adder"), 0o755))
	assert.NoError(t, CheckAnswerTree([]string{"adder"}, answers))
	assert.ErrorContains(t, CheckAnswerTree([]string{"adder", "fifo"}, answers), "fifo")
}
