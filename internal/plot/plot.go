// Package plot renders diagnostic PNG charts by driving gnuplot. Plotting
// is best effort: a missing gnuplot binary or a render failure should be
// logged by the caller and never abort a model run.
package plot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
)

const seriesTemplate = `
set terminal pngcairo size 900,600
set output '{{.Output}}'
set title '{{.Title}}'
set xlabel '{{.XLabel}}'
set ylabel '{{.YLabel}}'
set grid xtics ytics
set key outside top right
{{if .SplitAt}}plot '{{.Data}}' using 1:2 every ::0::{{.SplitAt}} with linespoints lc rgb 'dark-violet' title 'observed', \
  '{{.Data}}' using 1:2 every ::{{.SplitAt}} with linespoints lc rgb '#009e73' dt 2 title 'forecast'
{{else}}plot '{{.Data}}' using 1:2 with linespoints lc rgb 'dark-violet' notitle
{{end}}`

type seriesData struct {
	Output  string
	Title   string
	XLabel  string
	YLabel  string
	Data    string
	SplitAt int
}

// Plotter writes charts into an output directory.
type Plotter struct {
	outDir string
}

// New returns a plotter rooted at outDir.
func New(outDir string) *Plotter {
	return &Plotter{outDir: outDir}
}

// Available reports whether a gnuplot binary can be found.
func Available() bool {
	_, err := exec.LookPath("gnuplot")
	return err == nil
}

// Series renders one labeled series as a PNG. When observed > 0 and less
// than the series length, the tail from that point on is drawn as a
// separate forecast segment.
func (p *Plotter) Series(name, title, xlabel, ylabel string, xs []int, ys []float64, observed int) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("series length mismatch: %d vs %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return fmt.Errorf("empty series")
	}

	if err := os.MkdirAll(p.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}

	dataPath, err := writeData(xs, ys)
	if err != nil {
		return err
	}
	defer os.Remove(dataPath)

	data := seriesData{
		Output: filepath.Join(p.outDir, name),
		Title:  title,
		XLabel: xlabel,
		YLabel: ylabel,
		Data:   dataPath,
	}
	if observed > 0 && observed < len(xs) {
		data.SplitAt = observed - 1
	}
	return execTemplate(seriesTemplate, data)
}

// writeData creates a temp file holding one "x y" pair per line and
// returns its path.
func writeData(xs []int, ys []float64) (string, error) {
	f, err := os.CreateTemp("", "mortfit.plot.data.")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, x := range xs {
		b.WriteString(strconv.Itoa(x))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(ys[i], 'g', -1, 64))
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// execTemplate executes the supplied template and data to write a
// .gnuplot file, which it then passes to gnuplot.
func execTemplate(tmpl string, data interface{}) error {
	gf, err := os.CreateTemp("", "mortfit.gnuplot.")
	if err != nil {
		return err
	}
	defer os.Remove(gf.Name())

	terr := template.Must(template.New("").Parse(tmpl)).Execute(gf, data)
	cerr := gf.Close()
	if terr != nil {
		return terr
	}
	if cerr != nil {
		return cerr
	}

	if err := exec.Command("gnuplot", gf.Name()).Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) != 0 {
			return fmt.Errorf("%v: %q", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return err
	}
	return nil
}
