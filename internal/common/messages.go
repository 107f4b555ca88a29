package common

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"escrow-bot-go/internal/models"

	"gopkg.in/yaml.v2"
)

//go:embed messages.yaml
var defaultMessages []byte

// AllMessageKinds lists every notification a template set must cover.
var AllMessageKinds = []models.MessageKind{
	models.MessageDealCreated,
	models.MessagePaymentRequested,
	models.MessageDealPaid,
	models.MessagePaymentFailed,
	models.MessageDealCompleted,
	models.MessageDealDisputed,
	models.MessageDealCancelled,
	models.MessageAccountUpdated,
}

type messagesFile struct {
	Messages map[string]string `yaml:"messages"`
}

// MessageTemplates renders notification text for each message kind
type MessageTemplates struct {
	templates map[models.MessageKind]*template.Template
}

// LoadMessageTemplates parses the embedded defaults and, when messagesFile is
// set, overrides them with the templates found in that file.
func LoadMessageTemplates(messagesFile string) (*MessageTemplates, error) {
	mt, err := parseMessages(defaultMessages, "embedded messages")
	if err != nil {
		return nil, err
	}
	if messagesFile == "" {
		return mt, nil
	}

	var messagesPath string
	if filepath.IsAbs(messagesFile) {
		messagesPath = messagesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		messagesPath = filepath.Join(wd, messagesFile)
	}

	data, err := os.ReadFile(messagesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", messagesFile, err)
	}

	overrides, err := parseMessages(data, messagesFile)
	if err != nil {
		return nil, err
	}
	for kind, tmpl := range overrides.templates {
		mt.templates[kind] = tmpl
	}
	return mt, nil
}

func parseMessages(data []byte, source string) (*MessageTemplates, error) {
	var file messagesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", source, err)
	}

	mt := &MessageTemplates{templates: make(map[models.MessageKind]*template.Template)}
	for name, text := range file.Messages {
		kind := models.MessageKind(name)
		if !isKnownKind(kind) {
			return nil, fmt.Errorf("%s: unknown message kind %q", source, name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid template %q: %w", source, name, err)
		}
		mt.templates[kind] = tmpl
	}
	return mt, nil
}

func isKnownKind(kind models.MessageKind) bool {
	for _, k := range AllMessageKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Render produces the message text for kind
func (mt *MessageTemplates) Render(kind models.MessageKind, payload models.NotificationPayload) (string, error) {
	tmpl, ok := mt.templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for message kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("unable to render %q: %w", kind, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
