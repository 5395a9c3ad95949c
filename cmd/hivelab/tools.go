package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage the tool definition catalog",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tool definitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := openCatalog()
		if err != nil {
			return err
		}
		return listTools(cmd.Context(), cmd.OutOrStdout(), catalog)
	},
}

var toolsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored tool definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asGraph, _ := cmd.Flags().GetBool("graph")
		catalog, err := openCatalog()
		if err != nil {
			return err
		}
		def, err := catalog.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asGraph {
			d, err := newDesigner()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), d.Mermaid(&def.Composition))
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(def)
	},
}

var toolsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a composition and store it as a tool definition",
	Long: `Stores a composition file in the catalog. The id defaults to the file
name. Invalid compositions are repaired first; if they are still invalid
nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		owner, _ := cmd.Flags().GetString("owner")
		publish, _ := cmd.Flags().GetBool("publish")

		d, err := newDesigner()
		if err != nil {
			return err
		}
		catalog, err := openCatalog()
		if err != nil {
			return err
		}
		data, name, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		}
		def, err := importTool(cmd.Context(), cmd.ErrOrStderr(), d, catalog, importRequest{
			ID: id, Owner: owner, Publish: publish, Data: data, Name: name, Now: time.Now(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s (version %d, %s)\n", def.ID, def.Version, def.Status)
		return nil
	},
}

func init() {
	toolsShowCmd.Flags().Bool("graph", false, "Print a Mermaid flowchart instead of JSON")
	toolsImportCmd.Flags().String("id", "", "Tool id (default: file name)")
	toolsImportCmd.Flags().String("owner", "", "Owner user id")
	toolsImportCmd.Flags().Bool("publish", false, "Mark the tool as published")
	for _, c := range []*cobra.Command{toolsListCmd, toolsShowCmd, toolsImportCmd} {
		c.Flags().String("dir", "", "Directory of tool definitions (default ./tools)")
	}
	toolsCmd.AddCommand(toolsListCmd, toolsShowCmd, toolsImportCmd)
	rootCmd.AddCommand(toolsCmd)
}

func listTools(ctx context.Context, w io.Writer, catalog ports.ToolCatalog) error {
	ids, err := catalog.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		def, err := catalog.Get(ctx, id)
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\tv%d\t%s\t%d element(s)\n", id, def.Name, def.Version, def.Status, len(def.Composition.Elements))
	}
	return nil
}

type importRequest struct {
	ID, Owner, Name string
	Publish         bool
	Data            []byte
	Now             time.Time
}

// importTool validates, repairs when needed, and saves a definition. An
// existing definition with the same id gets its version bumped.
func importTool(ctx context.Context, errOut io.Writer, d *hivelab.Designer, catalog ports.ToolCatalog, req importRequest) (*domain.ToolDefinition, error) {
	c, err := candidate(req.Data, req.Name)
	if err != nil {
		return nil, err
	}
	res := d.Validate(c)
	var comp domain.ToolComposition
	if res.Valid && res.Sanitized != nil {
		comp = *res.Sanitized
	} else {
		comp, res = d.Sanitize(c)
		if !res.Valid {
			if err := renderResult(errOut, req.Name, res); err != nil {
				return nil, err
			}
			return nil, errInvalid
		}
		logger.Info("composition repaired before import", "id", req.ID)
	}
	comp.ID = req.ID

	def := &domain.ToolDefinition{
		ID:          req.ID,
		Name:        comp.Name,
		Description: comp.Description,
		OwnerID:     req.Owner,
		Status:      domain.ToolStatusDraft,
		Version:     1,
		Composition: comp,
		CreatedAt:   req.Now,
		UpdatedAt:   req.Now,
	}
	if req.Publish {
		def.Status = domain.ToolStatusPublished
	}
	if prev, err := catalog.Get(ctx, req.ID); err == nil {
		def.Version = prev.Version + 1
		def.CreatedAt = prev.CreatedAt
		if def.OwnerID == "" {
			def.OwnerID = prev.OwnerID
		}
	}
	if def.Name == "" {
		def.Name = req.ID
	}
	if err := catalog.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("save %s: %w", req.ID, err)
	}
	return def, nil
}
