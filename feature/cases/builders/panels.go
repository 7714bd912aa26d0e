package builders

import (
	"context"

	"go.uber.org/zap"

	"case-reconciler/core/reconcile"
	"case-reconciler/feature/cases/models"
)

// genome_build is the tool name recorded for reference assemblies.
const genomeBuildTool = "genome_build"

func buildPanels(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.Case.Panels))
	for i := range cs.Case.Panels {
		ref := &cs.Case.Panels[i]
		def, err := bc.Panels.Fetch(ctx, ref.PanelAppID, ref.Version)
		if err != nil {
			// a panel the service cannot describe is skipped, the case
			// itself still imports
			bc.Log.Warn("panel definition unavailable",
				zap.String("panel_id", ref.PanelAppID),
				zap.String("version", ref.Version),
				zap.Error(err))
			continue
		}
		ref.Definition = def
		cs.panelsBuilt = append(cs.panelsBuilt, ref)
		out = append(out, &models.Panel{
			PanelAppID:      ref.PanelAppID,
			PanelName:       def.Name,
			DiseaseGroup:    def.DiseaseGroup,
			DiseaseSubgroup: def.DiseaseSubgroup,
		})
	}
	return out, nil
}

func buildPanelVersions(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	out := make([]any, 0, len(cs.panelsBuilt))
	for _, ref := range cs.panelsBuilt {
		panel := cs.panelRowFor(ref)
		cs.panelVersionsBuilt = append(cs.panelVersionsBuilt, ref)
		out = append(out, &models.PanelVersion{
			PanelID:       panel.ID,
			VersionNumber: ref.Version,
		})
	}
	return out, nil
}

func buildToolVersions(ctx context.Context, bc *Context, cs *CaseState) ([]any, error) {
	return []any{&models.ToolOrAssemblyVersion{
		ToolName:      genomeBuildTool,
		VersionNumber: cs.Case.AssemblyVersion,
	}}, nil
}

// assemblyRow finds this case's genome build row among resolved tool versions.
func assemblyRow(cs *CaseState) *models.ToolOrAssemblyVersion {
	for _, tool := range rowsOf[models.ToolOrAssemblyVersion](cs, reconcile.EntityToolOrAssemblyVersion) {
		if tool.ToolName == genomeBuildTool {
			return tool
		}
	}
	return nil
}
