package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/classifier"
)

var classifyTitle string

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Classify a job description file without storing it",
	Long: `Runs the archetype classifier over a job description read from the
given file and prints the score distribution and extracted metadata.
Nothing is written to the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "Job title (improves seniority and prior detection)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", common.ErrValidation, args[0], err)
	}

	result := classifier.New(logger).Classify(string(data), classifyTitle)

	type scored struct {
		archetype models.Archetype
		score     float64
	}
	ranked := make([]scored, 0, len(result.Scores))
	for archetype, score := range result.Scores {
		ranked = append(ranked, scored{archetype, score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	fmt.Printf("Primary: %s\n", result.Primary)
	for _, s := range ranked {
		marker := " "
		if s.archetype == result.Primary {
			marker = "*"
		}
		fmt.Printf("  %s %-12s %.3f\n", marker, s.archetype, s.score)
	}
	if result.JobType != "" {
		fmt.Printf("Job type:  %s\n", result.JobType)
	}
	if result.Seniority != "" {
		fmt.Printf("Seniority: %s\n", result.Seniority)
	}
	if len(result.TechTags) > 0 {
		fmt.Printf("Tech:      %s\n", strings.Join(result.TechTags, ", "))
	}
	return nil
}
