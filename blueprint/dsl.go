package blueprint

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDSL parses the line oriented scheme language into a SchemeSpec.
//
//	# comment
//	axis <name> [kind] [param]
//	point <coord> ...                  coord: "1,2", "[1,2]" or "0..3,0..1"
//	relate <kind> [sub] [topology] <from> -> <to> [w=<weight>] [depth=<n>] [class=<c>]
//	constrain range <axis> <min> <max> [type=<t>] [scope=axis:<n>]
//	constrain even|odd|positive <axis> [type=<t>]
//	constrain multiple-of <axis> <n> [type=<t>]
//	constrain custom <predicate> [description...]
//	where <predicate>
//	layout <kind> [values...] [space=<n>] [origin=<coord>] [blocks=<list>]
//	policy <resolution> [strategy]
//	meta <key> <value...>
//	iterate <var> <start> <end> {
//	    ...                            var, var+N and var-N are substituted
//	}
//
// Iterate blocks nest; the opening brace may sit on its own line.
func ParseDSL(src []byte) (*SchemeSpec, error) {
	lines := strings.Split(string(src), "\n")
	p := &dslParser{spec: &SchemeSpec{}}
	if err := p.parseLines(lines, 0); err != nil {
		return nil, err
	}
	return p.spec, nil
}

// dslParser handles DSL parsing state
type dslParser struct {
	spec *SchemeSpec
}

// parseLines processes lines; base is the source line number of lines[0].
func (p *dslParser) parseLines(lines []string, base int) error {
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		next, err := p.parseLine(lines, i, base)
		if err != nil {
			return fmt.Errorf("line %d: %w", base+i+1, err)
		}
		i = next
	}
	return nil
}

// parseLine processes a single line and returns the index of the last line consumed.
func (p *dslParser) parseLine(lines []string, idx, base int) (int, error) {
	line := strings.TrimSpace(lines[idx])
	fields := strings.Fields(line)

	switch fields[0] {
	case "iterate":
		return p.parseIterateBlock(lines, idx, base, fields)
	default:
		return idx, p.processSimpleLine(fields)
	}
}

// parseIterateBlock handles iterate constructs
func (p *dslParser) parseIterateBlock(lines []string, idx, base int, fields []string) (int, error) {
	if fields[len(fields)-1] == "{" {
		fields = fields[:len(fields)-1]
	} else if strings.HasSuffix(fields[len(fields)-1], "{") {
		fields[len(fields)-1] = strings.TrimSuffix(fields[len(fields)-1], "{")
	}
	if len(fields) != 4 {
		return idx, fmt.Errorf("invalid iterate spec: %s", strings.Join(fields, " "))
	}
	varName, start, end, err := parseIterateParams(fields)
	if err != nil {
		return idx, err
	}

	blockStart := idx
	if !strings.HasSuffix(strings.TrimSpace(lines[idx]), "{") {
		blockStart++
		for blockStart < len(lines) && strings.TrimSpace(lines[blockStart]) == "" {
			blockStart++
		}
		if blockStart >= len(lines) || strings.TrimSpace(lines[blockStart]) != "{" {
			return idx, fmt.Errorf("missing '{' after iterate")
		}
	}

	block, blockEnd, err := collectBlockLines(lines, blockStart)
	if err != nil {
		return idx, err
	}
	if err := p.expandIterateBlock(block, varName, start, end, base+blockStart+1); err != nil {
		return idx, err
	}
	return blockEnd, nil
}

// processSimpleLine dispatches a directive
func (p *dslParser) processSimpleLine(fields []string) error {
	args := fields[1:]
	switch fields[0] {
	case "axis":
		return p.parseAxis(args)
	case "point":
		return p.parsePoint(args)
	case "relate":
		return p.parseRelate(args)
	case "constrain":
		return p.parseConstrain(args)
	case "where":
		if len(args) != 1 {
			return fmt.Errorf("where needs exactly one predicate name")
		}
		p.spec.RelateWhere = append(p.spec.RelateWhere, args[0])
		return nil
	case "layout":
		return p.parseLayout(args)
	case "policy":
		return p.parsePolicy(args)
	case "meta":
		if len(args) < 2 {
			return fmt.Errorf("meta needs a key and a value")
		}
		if p.spec.Metadata == nil {
			p.spec.Metadata = make(map[string]string)
		}
		p.spec.Metadata[args[0]] = strings.Join(args[1:], " ")
		return nil
	default:
		return fmt.Errorf("unknown directive: %s", fields[0])
	}
}

func (p *dslParser) parseAxis(args []string) error {
	if len(args) == 0 || len(args) > 3 {
		return fmt.Errorf("invalid axis spec: needs a name, an optional kind and parameter")
	}
	a := AxisSpec{Name: args[0]}
	if len(args) > 1 {
		a.Kind = args[1]
	}
	if len(args) > 2 {
		a.Param = args[2]
	}
	p.spec.Axes = append(p.spec.Axes, a)
	return nil
}

func (p *dslParser) parsePoint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("invalid point spec: missing coordinate")
	}
	for _, a := range args {
		pt := bracket(a)
		if _, err := ExpandPoints(pt); err != nil {
			return err
		}
		p.spec.Points = append(p.spec.Points, pt)
	}
	return nil
}

func (p *dslParser) parseRelate(args []string) error {
	arrow := -1
	for i, a := range args {
		if a == "->" {
			arrow = i
			break
		}
	}
	if arrow < 2 || arrow+1 >= len(args) {
		return fmt.Errorf("invalid relate spec: want relate <kind> [sub] <from> -> <to>")
	}
	r := RelationSpec{
		Kind: args[0],
		From: bracket(args[arrow-1]),
		To:   bracket(args[arrow+1]),
	}
	qualifiers := args[1 : arrow-1]
	if len(qualifiers) > 2 {
		return fmt.Errorf("invalid relate spec: too many qualifiers %v", qualifiers)
	}
	if len(qualifiers) > 0 {
		r.Sub = qualifiers[0]
	}
	if len(qualifiers) > 1 {
		r.Topology = qualifiers[1]
	}

	opts, err := parseOptions(args[arrow+2:])
	if err != nil {
		return err
	}
	for k, v := range opts {
		switch k {
		case "w", "weight":
			w, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid weight %q: %w", v, err)
			}
			r.Weight = &w
		case "depth":
			if r.Depth, err = strconv.Atoi(v); err != nil {
				return fmt.Errorf("invalid depth %q: %w", v, err)
			}
		case "class":
			r.Class = v
		default:
			return fmt.Errorf("unknown relate option %q", k)
		}
	}
	p.spec.Relations = append(p.spec.Relations, r)
	return nil
}

func (p *dslParser) parseConstrain(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("invalid constrain spec: needs a kind and an argument")
	}
	c := ConstraintSpec{Kind: args[0]}
	if c.Kind == "custom" {
		c.Name = args[1]
		c.Description = strings.Join(args[2:], " ")
		p.spec.Constraints = append(p.spec.Constraints, c)
		return nil
	}

	var positional []string
	var options []string
	for _, a := range args[1:] {
		if strings.Contains(a, "=") {
			options = append(options, a)
		} else {
			positional = append(positional, a)
		}
	}
	want := map[string]int{"range": 3, "multiple-of": 2, "even": 1, "odd": 1, "positive": 1}
	n, ok := want[c.Kind]
	if !ok {
		return fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
	if len(positional) != n {
		return fmt.Errorf("constraint %s takes %d arguments, got %d", c.Kind, n, len(positional))
	}
	ints, err := parseInts(positional)
	if err != nil {
		return err
	}
	c.Axis = int(ints[0])
	switch c.Kind {
	case "range":
		c.Min, c.Max = ints[1], ints[2]
	case "multiple-of":
		c.N = ints[1]
	}

	opts, err := parseOptions(options)
	if err != nil {
		return err
	}
	for k, v := range opts {
		switch k {
		case "type":
			c.Type = v
		case "scope":
			kind, arg, _ := strings.Cut(v, ":")
			c.Scope = &ScopeSpec{Kind: kind}
			switch kind {
			case "axis":
				axis, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid scope axis %q: %w", arg, err)
				}
				c.Scope.Axis = axis
			case "local", "regional":
				for _, pt := range strings.Split(arg, ";") {
					c.Scope.Points = append(c.Scope.Points, bracket(pt))
				}
			}
		default:
			return fmt.Errorf("unknown constrain option %q", k)
		}
	}
	p.spec.Constraints = append(p.spec.Constraints, c)
	return nil
}

func (p *dslParser) parseLayout(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("invalid layout spec: missing kind")
	}
	l := &LayoutSpec{Kind: args[0]}
	var positional []string
	var options []string
	for _, a := range args[1:] {
		if strings.Contains(a, "=") {
			options = append(options, a)
		} else {
			positional = append(positional, a)
		}
	}

	switch l.Kind {
	case "custom":
		if len(positional) != 1 {
			return fmt.Errorf("custom layout needs a strategy name")
		}
		l.Name = positional[0]
	case "z-order", "gray", "hilbert":
		if len(positional) != 1 {
			return fmt.Errorf("%s layout needs a bit count", l.Kind)
		}
		bits, err := strconv.ParseUint(positional[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid bits %q: %w", positional[0], err)
		}
		l.Bits = uint(bits)
	default:
		ints, err := parseInts(positional)
		if err != nil {
			return err
		}
		l.Extents = ints
	}

	opts, err := parseOptions(options)
	if err != nil {
		return err
	}
	for k, v := range opts {
		switch k {
		case "space":
			if l.Space, err = strconv.ParseUint(v, 10, 64); err != nil {
				return fmt.Errorf("invalid space %q: %w", v, err)
			}
		case "origin":
			if l.Origin, err = parseInts(strings.Split(strings.Trim(v, "[]"), ",")); err != nil {
				return err
			}
		case "blocks":
			if l.Blocks, err = parseInts(strings.Split(strings.Trim(v, "[]"), ",")); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown layout option %q", k)
		}
	}
	p.spec.Layout = l
	return nil
}

func (p *dslParser) parsePolicy(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("invalid policy spec: policy <resolution> [strategy]")
	}
	if p.spec.Policy == nil {
		p.spec.Policy = &PolicySpec{}
	}
	p.spec.Policy.Resolution = args[0]
	if len(args) == 2 {
		p.spec.Policy.Strategy = args[1]
	}
	return nil
}

// parseIterateParams extracts iterate parameters
func parseIterateParams(fields []string) (varName string, start, end int, err error) {
	varName = fields[1]
	start, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid iterate start %q: %w", fields[2], err)
	}
	end, err = strconv.Atoi(fields[3])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid iterate end %q: %w", fields[3], err)
	}
	return varName, start, end, nil
}

// collectBlockLines gathers the lines between the brace on lines[startIdx]
// and its matching closing brace, keeping nested blocks intact.
func collectBlockLines(lines []string, startIdx int) ([]string, int, error) {
	var block []string
	depth := 1
	for i := startIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "}":
			depth--
			if depth == 0 {
				return block, i, nil
			}
		case strings.HasSuffix(line, "{"):
			depth++
		}
		block = append(block, lines[i])
	}
	return nil, len(lines), fmt.Errorf("unterminated iterate block")
}

// expandIterateBlock runs the block once per value of the variable.
func (p *dslParser) expandIterateBlock(block []string, varName string, start, end, base int) error {
	for v := start; v <= end; v++ {
		expanded := make([]string, len(block))
		for i, line := range block {
			expanded[i] = expandVariable(line, varName, v)
		}
		if err := p.parseLines(expanded, base); err != nil {
			return fmt.Errorf("iterate %s=%d: %w", varName, v, err)
		}
	}
	return nil
}

// expandVariable substitutes the variable in every field and in every comma
// separated component of a field. "i+1" and "i-1" are evaluated.
func expandVariable(line, varName string, value int) string {
	fields := strings.Fields(line)
	for i, field := range fields {
		open := strings.HasPrefix(field, "[")
		closed := strings.HasSuffix(field, "]")
		body := strings.TrimSuffix(strings.TrimPrefix(field, "["), "]")
		parts := strings.Split(body, ",")
		for j, part := range parts {
			parts[j] = substitute(part, varName, value)
		}
		body = strings.Join(parts, ",")
		if open {
			body = "[" + body
		}
		if closed {
			body += "]"
		}
		fields[i] = body
	}
	return strings.Join(fields, " ")
}

func substitute(token, varName string, value int) string {
	if token == varName {
		return strconv.Itoa(value)
	}
	rest, ok := strings.CutPrefix(token, varName)
	if !ok || len(rest) < 2 || (rest[0] != '+' && rest[0] != '-') {
		return token
	}
	n, err := strconv.Atoi(rest[1:])
	if err != nil {
		return token
	}
	if rest[0] == '-' {
		n = -n
	}
	return strconv.Itoa(value + n)
}

// parseOptions splits key=value tokens.
func parseOptions(tokens []string) (map[string]string, error) {
	out := make(map[string]string, len(tokens))
	for _, t := range tokens {
		k, v, ok := strings.Cut(t, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid option %q", t)
		}
		out[k] = v
	}
	return out, nil
}

func parseInts(tokens []string) ([]int64, error) {
	out := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		v, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", t, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func bracket(s string) string {
	if strings.HasPrefix(s, "[") {
		return s
	}
	return "[" + s + "]"
}
