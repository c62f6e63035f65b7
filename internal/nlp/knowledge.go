package nlp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceBuiltin is reported by KnowledgeBase.Source for the default set.
const SourceBuiltin = "builtin"

// Topic is a single explained concept.
type Topic struct {
	Name        string `yaml:"name" json:"name"`
	Explanation string `yaml:"explanation" json:"explanation"`
}

// Subject groups topics.
type Subject struct {
	Name   string  `yaml:"name" json:"name"`
	Topics []Topic `yaml:"topics" json:"topics"`
}

// KnowledgeBase is the static subject → topic → explanation table.
// It is never mutated after construction and may be shared freely.
type KnowledgeBase struct {
	subjects []Subject
	source   string
}

// NewKnowledgeBase builds a knowledge base from subjects in the given order.
// Subjects with the same name are merged and blank names are rejected.
func NewKnowledgeBase(subjects []Subject) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{}
	index := make(map[string]int, len(subjects))
	for _, s := range subjects {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("knowledge base subject with empty name")
		}
		topics := make([]Topic, 0, len(s.Topics))
		for _, t := range s.Topics {
			if strings.TrimSpace(t.Name) == "" {
				return nil, fmt.Errorf("subject %q has a topic with empty name", name)
			}
			topics = append(topics, Topic{Name: strings.TrimSpace(t.Name), Explanation: t.Explanation})
		}
		if i, ok := index[name]; ok {
			kb.subjects[i].Topics = append(kb.subjects[i].Topics, topics...)
			continue
		}
		index[name] = len(kb.subjects)
		kb.subjects = append(kb.subjects, Subject{Name: name, Topics: topics})
	}
	return kb, nil
}

// DefaultKnowledgeBase returns the small built-in set used when no file is
// configured.
func DefaultKnowledgeBase() *KnowledgeBase {
	kb, _ := NewKnowledgeBase([]Subject{
		{Name: "math", Topics: []Topic{
			{Name: "algebra", Explanation: "Algebra is a branch of mathematics dealing with symbols and the rules for manipulating these symbols."},
			{Name: "calculus", Explanation: "Calculus is the mathematical study of continuous change."},
			{Name: "geometry", Explanation: "Geometry is a branch of mathematics that studies the sizes, shapes, positions, and dimensions of things."},
		}},
		{Name: "science", Topics: []Topic{
			{Name: "physics", Explanation: "Physics is the natural science that studies matter, its motion and behavior through space and time."},
			{Name: "chemistry", Explanation: "Chemistry is the scientific discipline involved with elements and compounds."},
			{Name: "biology", Explanation: "Biology is the natural science that studies life and living organisms."},
		}},
		{Name: "programming", Topics: []Topic{
			{Name: "python", Explanation: "Python is an interpreted, high-level, general-purpose programming language."},
			{Name: "java", Explanation: "Java is a class-based, object-oriented programming language."},
			{Name: "javascript", Explanation: "JavaScript is a programming language that conforms to the ECMAScript specification."},
		}},
	})
	kb.source = SourceBuiltin
	return kb
}

// LoadKnowledgeBase reads a YAML or JSON knowledge file. A missing file, or
// an empty path, yields the built-in default set. A present but malformed
// file is an error.
//
// Two layouts are accepted under the top-level "subjects" key: a list of
// {name, topics: [{name, explanation}]} or a mapping subject → topic →
// explanation. Mapping order in the file is preserved.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	if path == "" {
		return DefaultKnowledgeBase(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultKnowledgeBase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	kb, err := ParseKnowledgeBase(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
	}
	kb.source = path
	return kb, nil
}

// ParseKnowledgeBase decodes a knowledge document.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var doc struct {
		Subjects yaml.Node `yaml:"subjects"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var subjects []Subject
	switch doc.Subjects.Kind {
	case yaml.SequenceNode:
		if err := doc.Subjects.Decode(&subjects); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Subjects.Content); i += 2 {
			name, body := doc.Subjects.Content[i], doc.Subjects.Content[i+1]
			if body.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("subject %q: expected topic mapping", name.Value)
			}
			s := Subject{Name: name.Value}
			for j := 0; j+1 < len(body.Content); j += 2 {
				s.Topics = append(s.Topics, Topic{Name: body.Content[j].Value, Explanation: body.Content[j+1].Value})
			}
			subjects = append(subjects, s)
		}
	case 0:
		return nil, errors.New(`missing "subjects" key`)
	default:
		return nil, errors.New(`"subjects" must be a list or a mapping`)
	}
	return NewKnowledgeBase(subjects)
}

// Source is the file the knowledge base came from, or SourceBuiltin.
func (kb *KnowledgeBase) Source() string {
	return kb.source
}

// Subjects returns a copy of the table.
func (kb *KnowledgeBase) Subjects() []Subject {
	return cloneSubjects(kb.subjects)
}

// TopicCount is the number of explained topics across all subjects.
func (kb *KnowledgeBase) TopicCount() int {
	n := 0
	for _, s := range kb.subjects {
		n += len(s.Topics)
	}
	return n
}

// Lookup returns the entries relevant to a message. A topic matches when
// any extracted topic is a substring of its lower-cased name, or when its
// lower-cased name occurs in the lower-cased message. The same topic name
// may match under several subjects.
func (kb *KnowledgeBase) Lookup(message string, topics []string) RelevantInfo {
	msg := strings.ToLower(message)
	var out RelevantInfo
	for _, s := range kb.subjects {
		var matched []Topic
		for _, t := range s.Topics {
			name := strings.ToLower(t.Name)
			if containsAnyTopic(name, topics) || strings.Contains(msg, name) {
				matched = append(matched, t)
			}
		}
		if len(matched) > 0 {
			out = append(out, Subject{Name: s.Name, Topics: matched})
		}
	}
	return out
}

func containsAnyTopic(name string, topics []string) bool {
	for _, t := range topics {
		if t != "" && strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// RelevantInfo is the ordered subset of the knowledge base matched for one
// message.
type RelevantInfo []Subject

// Empty reports whether nothing matched.
func (r RelevantInfo) Empty() bool {
	for _, s := range r {
		if len(s.Topics) > 0 {
			return false
		}
	}
	return true
}

// Map returns the nested subject → topic → explanation form.
func (r RelevantInfo) Map() map[string]map[string]string {
	out := make(map[string]map[string]string, len(r))
	for _, s := range r {
		topics, ok := out[s.Name]
		if !ok {
			topics = make(map[string]string, len(s.Topics))
			out[s.Name] = topics
		}
		for _, t := range s.Topics {
			topics[t.Name] = t.Explanation
		}
	}
	return out
}

// Context renders one "subject - topic: explanation" line per entry, the
// form handed to models as auxiliary context.
func (r RelevantInfo) Context() string {
	var b strings.Builder
	for _, s := range r {
		for _, t := range s.Topics {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s - %s: %s", s.Name, t.Name, t.Explanation)
		}
	}
	return b.String()
}

func cloneSubjects(in []Subject) []Subject {
	out := make([]Subject, len(in))
	for i, s := range in {
		out[i] = Subject{Name: s.Name, Topics: append([]Topic(nil), s.Topics...)}
	}
	return out
}
