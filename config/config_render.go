package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/agglayer/aggkit-prover/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

var (
	ErrCycleVars                 = fmt.Errorf("cycle vars")
	ErrMissingVars               = fmt.Errorf("missing vars")
	ErrUnsupportedConfigFileType = fmt.Errorf("unsupported config file type")

	// an unquoted var is not valid TOML, so it gets quoted (with a type
	// mark to undo it later) before feeding the parser
	unquotedVarRE = regexp.MustCompile(`=\s*\{\{([^}:]+)\}\}`)
	quotedVarRE   = regexp.MustCompile(`=\s*\"\{\{([^}:]+:int)\}\}\"`)
	typeMarkRE    = regexp.MustCompile(`\{\{([^}:]+:int)\}\}`)
)

// FileData is a config file content along with the name it came from.
type FileData struct {
	Name    string
	Content string
}

// ConfigRender merges config files in order (last wins) and resolves the
// {{var}} indirections they contain. Environment variables take precedence
// over values defined in the files.
type ConfigRender struct {
	// 0: default, 1: specific
	FilesData []FileData
	// Function to resolve environment variables, typically os.LookupEnv
	LookupEnvFunc     func(key string) (string, bool)
	EnvironmentPrefix string
}

func NewConfigRender(filesData []FileData, environmentPrefix string) *ConfigRender {
	return &ConfigRender{
		FilesData:         filesData,
		LookupEnvFunc:     os.LookupEnv,
		EnvironmentPrefix: environmentPrefix,
	}
}

// Render merges all the files and resolves all the vars inside
func (c *ConfigRender) Render() (string, error) {
	mergedData, err := c.Merge()
	if err != nil {
		return "", fmt.Errorf("fail to merge files. Err: %w", err)
	}
	return c.ResolveVars(mergedData)
}

// Merge loads the files in order on top of each other and marshals the
// result back to a single TOML document
func (c *ConfigRender) Merge() (string, error) {
	k := koanf.New(".")
	for _, data := range c.FilesData {
		dataToml := quoteVars(data.Content)
		if err := k.Load(rawbytes.Provider([]byte(dataToml)), toml.Parser()); err != nil {
			log.Errorf("error loading file %s. Err:%v. FileData: %v", data.Name, err, dataToml)
			return "", fmt.Errorf("fail to load converted template %s to toml. Err: %w", data.Name, err)
		}
	}
	marshaled, err := k.Marshal(toml.Parser())
	if err != nil {
		return "", fmt.Errorf("fail to marshal to toml. Err: %w", err)
	}
	return unquoteVars(string(marshaled)), nil
}

// ResolveVars substitutes vars until none is left. A var that no file and no
// environment variable defines is a missing var. If the substitutions stop
// making progress while vars remain, the remaining ones depend on each other
// and form a cycle.
func (c *ConfigRender) ResolveVars(fullConfigData string) (string, error) {
	data := fullConfigData
	previousRemaining := -1
	for {
		tpl, values, err := c.readTemplateAndValues(data)
		if err != nil {
			return "", err
		}
		rendered := removeTypeMarks(c.executeTemplate(tpl, values))
		if missing := c.missingVars(tpl, values); len(missing) > 0 {
			return rendered, fmt.Errorf("missing vars: %v. Err: %w", missing, ErrMissingVars)
		}
		remaining := c.varsIn(rendered)
		if len(remaining) == 0 {
			return rendered, nil
		}
		if len(remaining) == previousRemaining {
			return fullConfigData, fmt.Errorf("not resolved cycle vars: %v. Err: %w", remaining, ErrCycleVars)
		}
		previousRemaining = len(remaining)
		data = rendered
	}
}

// readTemplateAndValues parses data both as a template and as a TOML
// document, so the defined keys can feed the var substitution
func (c *ConfigRender) readTemplateAndValues(data string) (*fasttemplate.Template,
	map[string]interface{}, error) {
	tpl, err := fasttemplate.NewTemplate(data, startTag, endTag)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to load template. Err:%w", err)
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(quoteVars(data))), toml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("error parsing data koanf.Load. Content: %s. Err: %w", data, err)
	}
	return tpl, k.All(), nil
}

func (c *ConfigRender) executeTemplate(tpl *fasttemplate.Template,
	values map[string]interface{}) string {
	return tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := c.findTagInEnvironment(tag); ok {
			return w.Write([]byte(v))
		}
		if v, ok := values[tag]; ok {
			return w.Write([]byte(fmt.Sprintf("%v", v)))
		}
		return w.Write([]byte(startTag + tag + endTag))
	})
}

// missingVars returns the template tags that neither the environment nor the
// defined values can ever resolve
func (c *ConfigRender) missingVars(tpl *fasttemplate.Template,
	values map[string]interface{}) []string {
	var missing []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if _, ok := c.findTagInEnvironment(tag); ok {
			return 0, nil
		}
		if _, ok := values[tag]; !ok && !contains(missing, tag) {
			missing = append(missing, tag)
		}
		return 0, nil
	})
	return missing
}

// varsIn returns the var tags present in configData
func (c *ConfigRender) varsIn(configData string) []string {
	tpl, err := fasttemplate.NewTemplate(configData, startTag, endTag)
	if err != nil {
		return []string{}
	}
	var vars []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if !contains(vars, tag) {
			vars = append(vars, tag)
		}
		return 0, nil
	})
	return vars
}

func (c *ConfigRender) findTagInEnvironment(tag string) (string, bool) {
	envTag := c.EnvironmentPrefix + "_" + strings.ReplaceAll(tag, ".", "_")
	if v, ok := c.LookupEnvFunc(envTag); ok {
		return v, true
	}
	return "", false
}

func contains(elems []string, search string) bool {
	for _, e := range elems {
		if e == search {
			return true
		}
	}
	return false
}

func quoteVars(data string) string {
	return unquotedVarRE.ReplaceAllString(data, `= "{{${1}:int}}"`)
}

func unquoteVars(data string) string {
	return quotedVarRE.ReplaceAllStringFunc(data, func(match string) string {
		submatch := quotedVarRE.FindStringSubmatch(match)
		if len(submatch) > 1 {
			parts := strings.Split(submatch[1], ":")
			return "= {{" + parts[0] + "}}"
		}
		return match
	})
}

func removeTypeMarks(data string) string {
	return typeMarkRE.ReplaceAllStringFunc(data, func(match string) string {
		submatch := typeMarkRE.FindStringSubmatch(match)
		if len(submatch) > 1 {
			parts := strings.Split(submatch[1], ":")
			return "{{" + parts[0] + "}}"
		}
		return match
	})
}

func readFileToString(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func convertFileToToml(fileData string, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "json":
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider([]byte(fileData)), json.Parser()); err != nil {
			return fileData, fmt.Errorf("error loading json file. Err: %w", err)
		}
		tomlData, err := toml.Parser().Marshal(k.Raw())
		if err != nil {
			return fileData, fmt.Errorf("error converting json to toml. Err: %w", err)
		}
		return string(tomlData), nil
	case "yml", "yaml", "ini":
		return fileData, fmt.Errorf("cant convert from %s to TOML. Err: %w", fileType, ErrUnsupportedConfigFileType)
	default:
		log.Warnf("filetype %s unknown, assuming is a TOML file", fileType)
		return fileData, nil
	}
}
