// Package gcode reads and writes GNC toolpath programs.
package gcode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/piwi3910/SlabNest/internal/model"
)

var (
	motionRe  = regexp.MustCompile(`(?i)(G00|G01|G02|G03|G0|G1|G2|G3)`)
	coordRe   = regexp.MustCompile(`(?i)([XYIJ])([+-]?\d*\.?\d+)`)
	contourRe = regexp.MustCompile(`\(===== CONTOUR (\d+) =====\)`)
)

// Program is the result of parsing one GNC file.
type Program struct {
	// MachineMode is set for machine exports, where every CONTOUR block is a
	// separate part. Office files hold a single part.
	MachineMode   bool
	Parts         []model.RawPart
	TotalContours int
}

// IsMachineFile reports whether content is a machine export: it starts with
// a '%' or the file name carries the _801 machine suffix.
func IsMachineFile(content, filename string) bool {
	return strings.HasPrefix(content, "%") || strings.Contains(filename, "_801")
}

// Parse reads a GNC program into raw parts. Motion commands before the first
// CONTOUR marker of a machine file belong to the header and are dropped.
func Parse(content, filename string) Program {
	prog := Program{MachineMode: IsMachineFile(content, filename)}

	var current *model.Contour
	if !prog.MachineMode {
		prog.Parts = append(prog.Parts, model.RawPart{
			ID:        "1",
			Name:      "Main Part",
			Contours:  []model.Contour{{ID: 1}},
			Remaining: 1,
		})
		current = &prog.Parts[0].Contours[0]
	}

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := contourRe.FindStringSubmatch(line); m != nil {
			prog.Parts = append(prog.Parts, model.RawPart{
				ID:        m[1],
				Name:      "Part " + m[1],
				Contours:  []model.Contour{{ID: 1}},
				Remaining: 1,
			})
			current = &prog.Parts[len(prog.Parts)-1].Contours[0]
			continue
		}

		// P-code metadata
		if strings.HasPrefix(line, "*N") {
			continue
		}

		cmd, ok := parseCommand(line)
		if !ok || current == nil {
			continue
		}
		cmd.LineNumber = i + 1
		current.Commands = append(current.Commands, cmd)
	}

	for i := range prog.Parts {
		p := &prog.Parts[i]
		corners := 0
		for j := range p.Contours {
			p.Contours[j].ComputeStats()
			corners += p.Contours[j].CornerCount
		}
		p.Metadata = map[string]any{"corner_count": corners}
		if filename != "" {
			p.Metadata["source"] = filename
		}
		prog.TotalContours += len(p.Contours)
	}
	return prog
}

// parseCommand extracts the motion word and coordinates of a single line.
// Two-character words are widened, so G1 becomes G01.
func parseCommand(line string) (model.Command, bool) {
	code := stripComments(line)
	word := motionRe.FindString(code)
	if word == "" {
		return model.Command{}, false
	}
	word = strings.ToUpper(word)
	if len(word) == 2 {
		word = word[:1] + "0" + word[1:]
	}

	cmd := model.Command{Type: word, OriginalText: line}
	for _, m := range coordRe.FindAllStringSubmatch(code, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch strings.ToUpper(m[1]) {
		case "X":
			cmd.X = model.Coord(v)
		case "Y":
			cmd.Y = model.Coord(v)
		case "I":
			cmd.I = model.Coord(v)
		case "J":
			cmd.J = model.Coord(v)
		}
	}
	return cmd, true
}

// stripComments removes ';' line comments and parenthetical comments.
func stripComments(line string) string {
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = line[:idx]
	}
	for {
		start := strings.Index(line, "(")
		if start < 0 {
			break
		}
		end := strings.Index(line[start:], ")")
		if end < 0 {
			line = line[:start]
			break
		}
		line = line[:start] + line[start+end+1:]
	}
	return strings.TrimSpace(line)
}
