// Package main implements the annostore-dump tool.
// It opens a compiled notes container and prints every stored entry.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/annostore/annostore/internal/cache"
	"github.com/annostore/annostore/internal/config"
	"github.com/annostore/annostore/pkg/apinotes"
	"github.com/annostore/annostore/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML/JSON config file")
	noCache := flag.Bool("no-cache", false, "Skip the compiled-notes cache")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := loadConfig(*configPath)
	if *noCache {
		cfg.Cache.Enabled = false
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	reader, err := apinotes.NewReader(buf)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}

	if cfg.Cache.Enabled {
		storeInCache(cfg, reader.ModuleName(), buf)
	}

	if err := dump(reader, os.Stdout); err != nil {
		log.Fatalf("Failed to dump %s: %v", path, err)
	}
}

func loadConfig(path string) *config.Config {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

// storeInCache records the container in the compiled-notes cache so
// later tool runs can locate it by module name and content fingerprint.
func storeInCache(cfg *config.Config, moduleName string, buf []byte) {
	c, err := cache.New(cfg.Cache.Dir, cfg.MaxCacheBytes())
	if err != nil {
		log.Printf("Cache unavailable: %v", err)
		return
	}
	defer c.Close()
	key, err := c.Put(moduleName, buf)
	if err != nil {
		log.Printf("Failed to cache container: %v", err)
		return
	}
	log.Printf("Cached as %s", key)
}

// dump prints every entry in the container, grouped by kind, with
// deterministic ordering within each group.
func dump(r *apinotes.Reader, w *os.File) error {
	fmt.Fprintf(w, "module %q\n", r.ModuleName())
	opts := r.ModuleOptions()
	if !opts.IsDefault() {
		fmt.Fprintf(w, "  options: swift_infer_import_as_member=%t\n", opts.SwiftInferImportAsMember)
	}

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	err := r.Visit(apinotes.Visitor{
		ObjCClass: func(id types.ContextID, name string, info *types.ContextInfo) {
			add("class %s (id=%d)%s", name, id, contextSuffix(info))
		},
		ObjCProtocol: func(id types.ContextID, name string, info *types.ContextInfo) {
			add("protocol %s (id=%d)%s", name, id, contextSuffix(info))
		},
		ObjCProperty: func(ctx types.ContextID, name string, isInstance bool, info *types.VariableInfo) {
			add("property ctx=%d %s%s%s", ctx, instanceMark(isInstance), name, variableSuffix(info))
		},
		ObjCMethod: func(ctx types.ContextID, sel types.SelectorRef, isInstance bool, info *types.MethodInfo) {
			add("method ctx=%d %s%s%s", ctx, instanceMark(isInstance), sel.String(), methodSuffix(info))
		},
		GlobalVariable: func(name string, info *types.VariableInfo) {
			add("var %s%s", name, variableSuffix(info))
		},
		GlobalFunction: func(name string, info *types.FunctionInfo) {
			add("func %s%s", name, functionSuffix(info))
		},
		EnumConstant: func(name string, info *types.EnumConstantInfo) {
			add("enum-constant %s%s", name, entitySuffix(&info.CommonEntityInfo))
		},
		Tag: func(name string, info *types.TagInfo) {
			add("tag %s%s", name, typeSuffix(&info.CommonTypeInfo))
		},
		Typedef: func(name string, info *types.TypedefInfo) {
			add("typedef %s%s", name, typeSuffix(&info.CommonTypeInfo))
		},
	})
	if err != nil {
		return err
	}

	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}

func instanceMark(isInstance bool) string {
	if isInstance {
		return "-"
	}
	return "+"
}

func entityParts(info *types.CommonEntityInfo) []string {
	var parts []string
	if info.Unavailable {
		parts = append(parts, "unavailable")
	}
	if info.UnavailableInSwift {
		parts = append(parts, "unavailable-in-swift")
	}
	if info.UnavailableMsg != "" {
		parts = append(parts, fmt.Sprintf("msg=%q", info.UnavailableMsg))
	}
	if info.SwiftPrivate {
		parts = append(parts, "swift-private")
	}
	if info.SwiftName != "" {
		parts = append(parts, fmt.Sprintf("swift-name=%q", info.SwiftName))
	}
	return parts
}

func typeParts(info *types.CommonTypeInfo) []string {
	parts := entityParts(&info.CommonEntityInfo)
	if info.SwiftBridge != nil {
		parts = append(parts, fmt.Sprintf("swift-bridge=%q", *info.SwiftBridge))
	}
	if info.NSErrorDomain != nil {
		parts = append(parts, fmt.Sprintf("ns-error-domain=%q", *info.NSErrorDomain))
	}
	return parts
}

func functionParts(info *types.FunctionInfo) []string {
	parts := entityParts(&info.CommonEntityInfo)
	if info.NullabilityAudited {
		parts = append(parts, fmt.Sprintf("audited slots=%d payload=%#x", info.NumAdjustedNullable, info.NullabilityPayload))
	}
	for i, p := range info.Params {
		if p.NoEscapeSpecified {
			parts = append(parts, fmt.Sprintf("param%d-noescape=%t", i, p.NoEscape))
		}
	}
	return parts
}

func contextSuffix(info *types.ContextInfo) string {
	parts := typeParts(&info.CommonTypeInfo)
	if info.DefaultNullability != nil {
		parts = append(parts, fmt.Sprintf("default-nullability=%d", *info.DefaultNullability))
	}
	if info.HasDesignatedInits {
		parts = append(parts, "has-designated-inits")
	}
	return joinSuffix(parts)
}

func variableSuffix(info *types.VariableInfo) string {
	parts := entityParts(&info.CommonEntityInfo)
	if info.Nullability != nil {
		parts = append(parts, fmt.Sprintf("nullability=%d", *info.Nullability))
	}
	return joinSuffix(parts)
}

func functionSuffix(info *types.FunctionInfo) string {
	return joinSuffix(functionParts(info))
}

func methodSuffix(info *types.MethodInfo) string {
	parts := functionParts(&info.FunctionInfo)
	if info.DesignatedInit {
		parts = append(parts, "designated-init")
	}
	if info.FactoryAsInit {
		parts = append(parts, "factory-as-init")
	}
	if info.Required {
		parts = append(parts, "required")
	}
	return joinSuffix(parts)
}

func entitySuffix(info *types.CommonEntityInfo) string {
	return joinSuffix(entityParts(info))
}

func typeSuffix(info *types.CommonTypeInfo) string {
	return joinSuffix(typeParts(info))
}

func joinSuffix(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, " ") + "]"
}
