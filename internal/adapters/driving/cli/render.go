package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

var (
	styleBold    = lipgloss.NewStyle().Bold(true)
	styleGray    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleSafe    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleDanger  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// riskBadge renders a risk level in its traffic-light colour.
func riskBadge(level domain.RiskLevel) string {
	label := "[" + string(level) + "]"
	switch level {
	case domain.RiskSafe:
		return styleSafe.Render(label)
	case domain.RiskWarning:
		return styleWarning.Render(label)
	case domain.RiskDanger:
		return styleDanger.Render(label)
	default:
		return styleError.Render(label)
	}
}

func severityLabel(ix domain.Interaction) string {
	if !ix.Found {
		return "no interaction found"
	}
	switch ix.Severity {
	case domain.SeverityMajor:
		return styleDanger.Render(string(ix.Severity))
	case domain.SeverityModerate:
		return styleWarning.Render(string(ix.Severity))
	default:
		return string(ix.Severity)
	}
}

// renderCheckResult writes a human-readable report for a pipeline run.
func renderCheckResult(w io.Writer, r *domain.CheckResult) {
	names := make([]string, len(r.Drugs))
	for i, d := range r.Drugs {
		names[i] = d.GenericName
	}
	fmt.Fprintf(w, "%s %s\n", riskBadge(r.Assessment.RiskLevel), styleBold.Render(strings.Join(names, " + ")))
	if r.Assessment.Explanation != "" {
		fmt.Fprintf(w, "  %s\n", r.Assessment.Explanation)
	}
	fmt.Fprintln(w)

	if len(r.Drugs) > 0 {
		fmt.Fprintln(w, styleBold.Render("Drugs"))
		for _, d := range r.Drugs {
			id := d.RxCUI
			if d.Synthetic {
				id += ", unverified"
			}
			fmt.Fprintf(w, "  %s -> %s %s\n", d.OriginalInput, d.GenericName, styleGray.Render("("+id+")"))
		}
		fmt.Fprintln(w)
	}

	if len(r.Interactions) > 0 {
		fmt.Fprintln(w, styleBold.Render("Interactions"))
		for _, ix := range r.Interactions {
			fmt.Fprintf(w, "  %s + %s: %s", ix.Drug1, ix.Drug2, severityLabel(ix))
			if ix.Found && ix.Source != "" {
				fmt.Fprintf(w, " %s", styleGray.Render("["+ix.Source+"]"))
			}
			fmt.Fprintln(w)
			if ix.Found && ix.Mechanism != "" {
				fmt.Fprintf(w, "      %s\n", ix.Mechanism)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Assessment.Recommendations) > 0 {
		fmt.Fprintln(w, styleBold.Render("Recommendations"))
		for _, rec := range r.Assessment.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
		fmt.Fprintln(w)
	}

	if r.Assessment.RiskLevel != domain.RiskError {
		s := r.Assessment.RiskScores
		fmt.Fprintf(w, "Scores: overall %.2f | interaction %.2f | patient %.2f | drug %.2f | context %.2f\n",
			s.Overall, s.Interaction, s.PatientFactors, s.DrugCharacteristics, s.ClinicalContext)
		fmt.Fprintf(w, "Confidence: %.2f\n", r.Assessment.Confidence)
	}

	warnings := append(append([]string{}, r.Warnings...), r.Assessment.Warnings...)
	for _, msg := range warnings {
		fmt.Fprintf(w, "%s %s\n", styleWarning.Render("warning:"), msg)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(w, "%s %s\n", styleError.Render("error:"), msg)
	}

	footer := fmt.Sprintf("request %s in %dms", r.RequestID, r.TotalTimeMS)
	if r.PatientContextUsed {
		footer += ", patient context applied"
	}
	fmt.Fprintln(w, styleGray.Render(footer))
}

// renderPatientContext writes a derived patient snapshot.
func renderPatientContext(w io.Writer, pc *domain.PatientContext) {
	d := pc.Demographics
	fmt.Fprintf(w, "%s  age %d, %s", styleBold.Render("Patient "+pc.PatientID), d.Age, d.Gender)
	if d.BMI > 0 {
		fmt.Fprintf(w, ", BMI %.1f", d.BMI)
	}
	fmt.Fprintln(w)

	if len(pc.Allergies) > 0 {
		fmt.Fprintf(w, "  Allergies: %s\n", strings.Join(pc.Allergies, ", "))
	}
	if len(pc.Conditions) > 0 {
		conds := make([]string, 0, len(pc.Conditions))
		for _, c := range pc.Conditions {
			conds = append(conds, fmt.Sprintf("%s (%s)", c.Condition, c.Status))
		}
		fmt.Fprintf(w, "  Conditions: %s\n", strings.Join(conds, ", "))
	}
	if len(pc.CurrentMedications) > 0 {
		fmt.Fprintln(w, "  Medications:")
		for _, m := range pc.CurrentMedications {
			fmt.Fprintf(w, "    %s %s %s %s\n", m.DrugName, m.Dose, m.Frequency,
				styleGray.Render("["+string(m.InteractionPotential)+"]"))
		}
	}
	if len(pc.LabValues) > 0 {
		fmt.Fprintln(w, "  Labs:")
		for _, name := range sortedKeys(pc.LabValues) {
			lab := pc.LabValues[name]
			line := fmt.Sprintf("    %s %.2f %s", name, lab.Value, lab.Unit)
			if len(lab.ClinicalSignificance) > 0 {
				line += " " + styleWarning.Render(strings.Join(lab.ClinicalSignificance, ", "))
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(pc.RiskFactors) > 0 {
		fmt.Fprintln(w, "  Risk factors:")
		for _, rf := range pc.RiskFactors {
			fmt.Fprintf(w, "    %s (%s)\n", rf.Factor, rf.Impact)
		}
	}
	for _, c := range pc.InteractionConsiderations {
		fmt.Fprintf(w, "  - %s\n", c)
	}
	for _, msg := range pc.Warnings {
		fmt.Fprintf(w, "%s %s\n", styleWarning.Render("warning:"), msg)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
