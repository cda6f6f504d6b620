package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"cityforall/internal/model"
)

const modulePrefix = "modul_"

// rawLevel mirrors the JSON level object. Options is either a literal
// string array or the name of a shared scale defined at the root.
type rawLevel struct {
	Options json.RawMessage `json:"options"`
	Image   string          `json:"image"`
	Height  string          `json:"height"`
	Angle   string          `json:"angle"`
	Surface string          `json:"surface"`
}

type rawQuestion struct {
	ID      *int               `json:"id"`
	Text    *string            `json:"text"`
	Type    *string            `json:"type"`
	Options []string           `json:"options"`
	Levels  []rawLevel         `json:"levels"`
	If      map[string]rawRule `json:"if"`
	Image   string             `json:"image"`
}

type rawRule struct {
	Module     string `json:"module"`
	QuestionID int    `json:"id"`
}

// Load reads a survey definition JSON file and builds the validated
// graph. It fails if the file is missing or malformed, if a required
// question field is absent, or if a routing rule or scale reference
// does not resolve within the loaded graph.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("survey file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a graph from raw survey JSON.
func Parse(data []byte) (*Graph, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("survey definition is not valid JSON: %w", err)
	}

	g := &Graph{
		modules: make(map[string]*model.Module),
		scales:  make(map[string][]string),
	}

	// Non-module root keys holding string arrays are shared scales
	// (options_scale and friends).
	for key, raw := range root {
		if strings.HasPrefix(key, modulePrefix) {
			continue
		}
		var scale []string
		if err := json.Unmarshal(raw, &scale); err == nil {
			g.scales[key] = scale
		}
	}

	for key, raw := range root {
		if !strings.HasPrefix(key, modulePrefix) {
			continue
		}
		var questions []rawQuestion
		if err := json.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("module %s: %w", key, err)
		}
		mod := &model.Module{
			Name:      key,
			Questions: make(map[int]*model.Question, len(questions)),
		}
		for i, rq := range questions {
			q, err := buildQuestion(key, i, rq)
			if err != nil {
				return nil, err
			}
			if _, dup := mod.Questions[q.ID]; dup {
				return nil, fmt.Errorf("module %s: duplicate question id %d", key, q.ID)
			}
			mod.Questions[q.ID] = q
			mod.Order = append(mod.Order, q.ID)
		}
		g.modules[key] = mod
		g.moduleOrder = append(g.moduleOrder, key)
	}

	if len(g.modules) == 0 {
		return nil, fmt.Errorf("survey definition contains no %s* modules", modulePrefix)
	}
	sortModules(g.moduleOrder)

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func buildQuestion(module string, idx int, rq rawQuestion) (*model.Question, error) {
	if rq.ID == nil {
		return nil, fmt.Errorf("module %s: question #%d has no id", module, idx)
	}
	if rq.Text == nil {
		return nil, fmt.Errorf("module %s: question %d has no text", module, *rq.ID)
	}
	if rq.Type == nil {
		return nil, fmt.Errorf("module %s: question %d has no type", module, *rq.ID)
	}
	q := &model.Question{
		ID:      *rq.ID,
		Text:    *rq.Text,
		Type:    model.QuestionType(strings.ToLower(*rq.Type)),
		Options: rq.Options,
		Image:   rq.Image,
	}
	for _, rl := range rq.Levels {
		lvl := model.Level{
			Image:   rl.Image,
			Height:  rl.Height,
			Angle:   rl.Angle,
			Surface: rl.Surface,
		}
		if len(rl.Options) > 0 {
			// literal array or scale name
			if rl.Options[0] == '[' {
				if err := json.Unmarshal(rl.Options, &lvl.Options); err != nil {
					return nil, fmt.Errorf("module %s: question %d: bad level options: %w", module, q.ID, err)
				}
			} else {
				if err := json.Unmarshal(rl.Options, &lvl.OptionsRef); err != nil {
					return nil, fmt.Errorf("module %s: question %d: bad level options reference: %w", module, q.ID, err)
				}
			}
		}
		q.Levels = append(q.Levels, lvl)
	}
	if len(rq.If) > 0 {
		q.Routing = make(map[string]model.Target, len(rq.If))
		for answer, rule := range rq.If {
			target := model.Target{Module: rule.Module, QuestionID: rule.QuestionID}
			if target.Module == "" {
				target.Module = module
			}
			q.Routing[answer] = target
		}
	}
	return q, nil
}

// validate checks that every routing target and level scale reference
// resolves inside the loaded graph.
func (g *Graph) validate() error {
	for _, name := range g.moduleOrder {
		mod := g.modules[name]
		for _, id := range mod.Order {
			q := mod.Questions[id]
			for answer, target := range q.Routing {
				tm, ok := g.modules[target.Module]
				if !ok {
					return fmt.Errorf("module %s: question %d: rule %q targets unknown module %s",
						name, id, answer, target.Module)
				}
				if _, ok := tm.Questions[target.QuestionID]; !ok {
					return fmt.Errorf("module %s: question %d: rule %q targets unknown question %s:%d",
						name, id, answer, target.Module, target.QuestionID)
				}
			}
			for i, lvl := range q.Levels {
				if lvl.OptionsRef == "" {
					continue
				}
				if _, ok := g.scales[lvl.OptionsRef]; !ok {
					return fmt.Errorf("module %s: question %d: level %d references unknown scale %q",
						name, id, i, lvl.OptionsRef)
				}
			}
		}
	}
	return nil
}

// sortModules orders module names by their numeric suffix (modul_1,
// modul_2, ...), falling back to lexicographic order.
func sortModules(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, aok := moduleIndex(names[i])
		b, bok := moduleIndex(names[j])
		if aok && bok {
			return a < b
		}
		return names[i] < names[j]
	})
}

func moduleIndex(name string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, modulePrefix))
	return n, err == nil
}
