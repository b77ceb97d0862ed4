package profile

import (
	"fmt"
	"strconv"
)

// pathOp is a single drawing command of a parsed SVG path, with control
// points already resolved to absolute coordinates.
type pathOp struct {
	cmd    byte // 'L', 'Q', 'C' or 'Z'
	x, y   float64
	x1, y1 float64
	x2, y2 float64
}

// subPath is a moveto command group: a start point and its drawing commands.
type subPath struct {
	x, y float64
	ops  []pathOp
}

// pathParser is a recursive descent parser for SVG 1.1 path data. Smooth
// commands (S, T) are rewritten into their explicit C and Q equivalents so
// downstream tessellation only sees three curve kinds. Elliptical arcs are
// rejected since tool profiles drawn as arcs are not supported.
type pathParser struct {
	data     string
	index    int
	paths    []*subPath
	group    *subPath
	cx, cy   float64
	relative bool
	// last control point, for S and T reflection.
	lastCmd  byte
	lastCtlX float64
	lastCtlY float64
	// pending marks a group not yet added to paths, started by a
	// closepath: drawing after Z begins a fresh subpath.
	pending bool
}

// ensureGroup registers the current group with the result the first time a
// drawing command lands in it.
func (p *pathParser) ensureGroup() {
	if p.pending {
		p.paths = append(p.paths, p.group)
		p.pending = false
	}
}

func parsePathData(d string) ([]*subPath, error) {
	p := &pathParser{data: d}
	if err := p.parse(); err != nil {
		return nil, fmt.Errorf("path data %q: %w", d, err)
	}
	return p.paths, nil
}

func (p *pathParser) parse() error {
	for {
		p.whitespace()
		if c := p.peek(); c != 'M' && c != 'm' {
			break
		}
		if err := p.parseMoveTo(); err != nil {
			return err
		}
		p.whitespace()
		if err := p.parseDrawToCommands(); err != nil {
			return err
		}
	}
	p.whitespace()
	if p.index != len(p.data) {
		return fmt.Errorf("unparsed data: %q", p.data[p.index:])
	}
	return nil
}

func (p *pathParser) parseMoveTo() error {
	command := p.next()
	p.relative = command == 'm'
	p.whitespace()

	x, y, err := p.parseCoordinatePair()
	if err != nil {
		return err
	}
	if p.relative {
		x += p.cx
		y += p.cy
	}
	p.cx, p.cy = x, y
	p.group = &subPath{x: x, y: y}
	p.pending = true
	p.lastCmd = 'M'

	// Extra pairs after a moveto are implicit linetos.
	for {
		saved := p.index
		p.commaWhitespace()
		x, y, err := p.parseCoordinatePair()
		if err != nil {
			p.index = saved
			break
		}
		if p.relative {
			x += p.cx
			y += p.cy
		}
		p.lineTo(x, y)
	}
	return nil
}

func (p *pathParser) parseDrawToCommands() error {
	first := true
	for {
		if !first {
			p.whitespace()
		}
		first = false

		var err error
		switch p.peek() {
		case 'L', 'l':
			err = p.parseLineTo()
		case 'H', 'h':
			err = p.parseAxisLineTo(true)
		case 'V', 'v':
			err = p.parseAxisLineTo(false)
		case 'C', 'c':
			err = p.parseCubicTo(false)
		case 'S', 's':
			err = p.parseCubicTo(true)
		case 'Q', 'q':
			err = p.parseQuadTo(false)
		case 'T', 't':
			err = p.parseQuadTo(true)
		case 'Z', 'z':
			err = p.parseClosePath()
		case 'A', 'a':
			return fmt.Errorf("elliptical arc commands are not supported")
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *pathParser) lineTo(x, y float64) {
	p.ensureGroup()
	p.group.ops = append(p.group.ops, pathOp{cmd: 'L', x: x, y: y})
	p.cx, p.cy = x, y
	p.lastCmd = 'L'
}

func (p *pathParser) parseClosePath() error {
	p.next()
	p.ensureGroup()
	p.group.ops = append(p.group.ops, pathOp{cmd: 'Z', x: p.group.x, y: p.group.y})
	p.cx, p.cy = p.group.x, p.group.y
	p.group = &subPath{x: p.cx, y: p.cy}
	p.pending = true
	p.lastCmd = 'Z'
	return nil
}

func (p *pathParser) parseLineTo() error {
	c := p.next()
	p.relative = c == 'l'
	p.whitespace()
	first := true
	for {
		saved := p.index
		if !first {
			p.commaWhitespace()
		}
		x, y, err := p.parseCoordinatePair()
		if err != nil {
			if !first {
				p.index = saved
				return nil
			}
			return err
		}
		if p.relative {
			x += p.cx
			y += p.cy
		}
		p.lineTo(x, y)
		first = false
	}
}

// parseAxisLineTo handles H/h (horizontal=true) and V/v commands.
func (p *pathParser) parseAxisLineTo(horizontal bool) error {
	c := p.next()
	p.relative = c == 'h' || c == 'v'
	p.whitespace()
	first := true
	for {
		saved := p.index
		if !first {
			p.commaWhitespace()
		}
		n, err := p.parseNumber()
		if err != nil {
			if !first {
				p.index = saved
				return nil
			}
			return err
		}
		x, y := p.cx, p.cy
		if horizontal {
			if p.relative {
				n += p.cx
			}
			x = n
		} else {
			if p.relative {
				n += p.cy
			}
			y = n
		}
		p.lineTo(x, y)
		first = false
	}
}

// parseCubicTo handles C/c, and S/s when smooth is true. Smooth segments
// reflect the previous cubic's second control point about the current point.
func (p *pathParser) parseCubicTo(smooth bool) error {
	c := p.next()
	p.relative = c == 'c' || c == 's'
	p.whitespace()
	first := true
	for {
		saved := p.index
		if !first {
			p.commaWhitespace()
		}
		var x1, y1 float64
		var err error
		if smooth {
			x1, y1 = p.cx, p.cy
			if p.lastCmd == 'C' {
				x1, y1 = 2*p.cx-p.lastCtlX, 2*p.cy-p.lastCtlY
			}
		} else {
			x1, y1, err = p.parseCoordinatePair()
			if err != nil {
				if !first {
					p.index = saved
					return nil
				}
				return err
			}
			if p.relative {
				x1 += p.cx
				y1 += p.cy
			}
			p.commaWhitespace()
		}
		x2, y2, err := p.parseCoordinatePair()
		if err != nil {
			if smooth && !first {
				p.index = saved
				return nil
			}
			return err
		}
		p.commaWhitespace()
		x, y, err := p.parseCoordinatePair()
		if err != nil {
			return err
		}
		if p.relative {
			x2 += p.cx
			y2 += p.cy
			x += p.cx
			y += p.cy
		}
		p.ensureGroup()
		p.group.ops = append(p.group.ops, pathOp{cmd: 'C', x: x, y: y, x1: x1, y1: y1, x2: x2, y2: y2})
		p.cx, p.cy = x, y
		p.lastCmd = 'C'
		p.lastCtlX, p.lastCtlY = x2, y2
		first = false
	}
}

// parseQuadTo handles Q/q, and T/t when smooth is true.
func (p *pathParser) parseQuadTo(smooth bool) error {
	c := p.next()
	p.relative = c == 'q' || c == 't'
	p.whitespace()
	first := true
	for {
		saved := p.index
		if !first {
			p.commaWhitespace()
		}
		var x1, y1 float64
		var err error
		if smooth {
			x1, y1 = p.cx, p.cy
			if p.lastCmd == 'Q' {
				x1, y1 = 2*p.cx-p.lastCtlX, 2*p.cy-p.lastCtlY
			}
		} else {
			x1, y1, err = p.parseCoordinatePair()
			if err != nil {
				if !first {
					p.index = saved
					return nil
				}
				return err
			}
			if p.relative {
				x1 += p.cx
				y1 += p.cy
			}
			p.commaWhitespace()
		}
		x, y, err := p.parseCoordinatePair()
		if err != nil {
			if smooth && !first {
				p.index = saved
				return nil
			}
			return err
		}
		if p.relative {
			x += p.cx
			y += p.cy
		}
		p.ensureGroup()
		p.group.ops = append(p.group.ops, pathOp{cmd: 'Q', x: x, y: y, x1: x1, y1: y1})
		p.cx, p.cy = x, y
		p.lastCmd = 'Q'
		p.lastCtlX, p.lastCtlY = x1, y1
		first = false
	}
}

func (p *pathParser) parseCoordinatePair() (float64, float64, error) {
	x, err := p.parseNumber()
	if err != nil {
		return 0, 0, err
	}
	p.commaWhitespace()
	y, err := p.parseNumber()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (p *pathParser) parseNumber() (float64, error) {
	c := p.peek()
	if c == '+' || c == '-' {
		p.next()
		n, err := p.parseNonNegativeNumber()
		if c == '-' {
			n = -n
		}
		return n, err
	}
	return p.parseNonNegativeNumber()
}

func (p *pathParser) parseNonNegativeNumber() (float64, error) {
	number := p.digitSequence()
	if number == "" {
		c := p.next()
		if c != '.' {
			return 0, fmt.Errorf("expected a number, got %q", string(c))
		}
		number = "." + p.digitSequence()
		if number == "." {
			return 0, fmt.Errorf("expected a number, got only a \".\"")
		}
	} else if p.peek() == '.' {
		p.next()
		number += "." + p.digitSequence()
	}
	if c := p.peek(); c == 'E' || c == 'e' {
		p.next()
		sign := ""
		if c := p.peek(); c == '+' || c == '-' {
			p.next()
			sign = string(c)
		}
		exponent := p.digitSequence()
		if exponent == "" {
			return 0, fmt.Errorf("expected an exponent digit sequence")
		}
		number += "E" + sign + exponent
	}
	return strconv.ParseFloat(number, 64)
}

func (p *pathParser) digitSequence() string {
	start := p.index
	for {
		c := p.peek()
		if c < '0' || c > '9' {
			break
		}
		p.next()
	}
	return p.data[start:p.index]
}

func (p *pathParser) whitespace() int {
	count := 0
	for {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.next()
			count++
		default:
			return count
		}
	}
}

func (p *pathParser) commaWhitespace() bool {
	if p.peek() == ',' {
		p.next()
		p.whitespace()
		return true
	}
	if p.whitespace() > 0 {
		if p.peek() == ',' {
			p.next()
		}
		p.whitespace()
		return true
	}
	return false
}

func (p *pathParser) peek() byte {
	if p.index < len(p.data) {
		return p.data[p.index]
	}
	return 0
}

func (p *pathParser) next() byte {
	if p.index < len(p.data) {
		i := p.index
		p.index++
		return p.data[i]
	}
	return 0
}
