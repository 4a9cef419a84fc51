package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// Parse reads a document in the CAD text format. Blank lines are skipped.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		g, err := parseGroup(text)
		if err != nil {
			return Document{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "line %d", line)
		}
		doc.Groups = append(doc.Groups, g)
	}
	if err := sc.Err(); err != nil {
		return Document{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read export")
	}
	return doc, nil
}

func parseGroup(text string) (Group, error) {
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return Group{}, errors.New(errors.ErrCodeInvalidFormat, "group must be enclosed in braces")
	}
	parts := strings.SplitN(text[1:len(text)-1], "|", 3)
	if len(parts) != 3 {
		return Group{}, errors.New(errors.ErrCodeInvalidFormat, "expected style|tag|points")
	}

	style := strings.Split(parts[0], ",")
	if len(style) != 3 {
		return Group{}, errors.New(errors.ErrCodeInvalidFormat, "style %q must be block,color,rotation", parts[0])
	}
	color, err := strconv.Atoi(style[1])
	if err != nil {
		return Group{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "color")
	}
	rotation, err := strconv.Atoi(style[2])
	if err != nil {
		return Group{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "rotation")
	}

	tag, bt, ok := strings.Cut(parts[1], ":")
	if !ok {
		return Group{}, errors.New(errors.ErrCodeInvalidFormat, "tag %q must be name:type", parts[1])
	}

	pts, err := parsePoints(parts[2])
	if err != nil {
		return Group{}, err
	}
	return Group{
		Type:   rack.BayType(bt),
		Style:  rack.Style{Block: style[0], Color: color, Rotation: rotation},
		Tag:    tag,
		Points: pts,
	}, nil
}

func parsePoints(s string) ([]orb.Point, error) {
	var pts []orb.Point
	for s != "" {
		if s[0] != '(' {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "expected '(' in %q", s)
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unterminated coordinate %q", s)
		}
		xyz := strings.Split(s[1:end], ",")
		if len(xyz) != 3 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "coordinate %q must be x,y,z", s[:end+1])
		}
		x, err := strconv.ParseInt(xyz[0], 10, 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "x")
		}
		y, err := strconv.ParseInt(xyz[1], 10, 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "y")
		}
		pts = append(pts, orb.Point{float64(x), float64(y)})
		s = s[end+1:]
	}
	return pts, nil
}
