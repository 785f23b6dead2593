package pipeline

import (
	"context"

	"github.com/garden-io/garden-core/pkg/configload"
	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/moduleconvert"
	"github.com/garden-io/garden-core/pkg/plugin"
	"github.com/garden-io/garden-core/pkg/rendertemplate"
)

// LoadOptions controls how LoadProject walks and expands a project.
type LoadOptions struct {
	Walk     configload.WalkOptions
	Registry *plugin.Registry // required only if the project has Module documents
}

// LoadProject walks rootDir's config documents, validates each one,
// expands ConfigTemplate/RenderTemplate pairs, converts legacy Modules
// through their plugin's module.convert handler, and returns the flat
// list of Build/Deploy/Run/Test actions ready for the graph builder.
func LoadProject(ctx context.Context, rootDir string, opts LoadOptions) (*Project, error) {
	docs, err := configload.Walk(rootDir, opts.Walk)
	if err != nil {
		return nil, err
	}

	var (
		projectDoc *configload.RawDoc
		actionDocs []configload.RawDoc
		moduleDocs []configload.RawDoc
		templates  = map[string]rendertemplate.Definition{}
		renders    []configload.RawDoc
	)

	for i := range docs {
		doc := docs[i]
		if err := configload.Validate(doc.Kind, doc.Body); err != nil {
			return nil, err
		}
		switch doc.Kind {
		case configload.KindProject:
			d := doc
			projectDoc = &d
		case configload.KindModule:
			moduleDocs = append(moduleDocs, doc)
		case configload.KindConfigTemplate:
			def := decodeConfigTemplate(doc)
			templates[def.Name] = def
		case configload.KindRenderTemplate:
			renders = append(renders, doc)
		default:
			if configload.ActionKinds[doc.Kind] {
				actionDocs = append(actionDocs, doc)
			}
			// Command/Workflow/Group documents are consumed by the CLI
			// layer directly, not by the graph builder.
		}
	}

	proj := &Project{RootDir: rootDir}
	if projectDoc != nil {
		proj.Name, proj.Variables = decodeProject(*projectDoc)
	}

	for _, rdoc := range renders {
		req := decodeRenderTemplate(rdoc)
		def, ok := templates[req.TemplateName]
		if !ok {
			return nil, gardenerr.Newf(gardenerr.KindConfiguration, "RenderTemplate %q references unknown ConfigTemplate %q", rdoc.Name, req.TemplateName)
		}
		bodies, err := rendertemplate.Render(def, req)
		if err != nil {
			return nil, err
		}
		for _, body := range bodies {
			kind := configload.Kind(getString(body, "kind"))
			rendered := configload.RawDoc{
				Kind:           kind,
				Name:           getString(body, "name"),
				Body:           body,
				BasePath:       def.BasePath,
				ConfigFilePath: rdoc.ConfigFilePath,
			}
			if err := configload.Validate(rendered.Kind, rendered.Body); err != nil {
				return nil, err
			}
			if rendered.Kind == configload.KindModule {
				moduleDocs = append(moduleDocs, rendered)
			} else if configload.ActionKinds[rendered.Kind] {
				actionDocs = append(actionDocs, rendered)
			}
		}
	}

	for _, doc := range actionDocs {
		cfg, err := decodeAction(doc)
		if err != nil {
			return nil, err
		}
		proj.Actions = append(proj.Actions, cfg)
	}

	if len(moduleDocs) > 0 {
		if opts.Registry == nil {
			return nil, gardenerr.New(gardenerr.KindConfiguration, "project has Module documents but no plugin registry was supplied")
		}
		modules := make([]moduleconvert.Module, 0, len(moduleDocs))
		for _, doc := range moduleDocs {
			modules = append(modules, decodeModule(doc))
		}
		converted, _, err := moduleconvert.Convert(ctx, opts.Registry, modules)
		if err != nil {
			return nil, err
		}
		proj.Actions = append(proj.Actions, converted...)
	}

	log.Printf("loaded %d actions from %s", len(proj.Actions), rootDir)
	return proj, nil
}
