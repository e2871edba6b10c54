package commands

import (
	"context"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ObjectCmd inspects harvest objects.
var ObjectCmd = &cobra.Command{
	Use:   "object",
	Short: "Inspect harvest objects",
	Long: `Inspect harvest objects: the per-document import attempts and
their recorded errors.

Examples:
  geocat object show <object-id>
  geocat object errors <object-id>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var objectShowCmd = &cobra.Command{
	Use:   "show <object-id>",
	Short: "Show a harvest object",
	Args:  cobra.ExactArgs(1),
	RunE:  runObjectShow,
}

var objectErrorsCmd = &cobra.Command{
	Use:   "errors <object-id>",
	Short: "List the recorded errors for a harvest object",
	Args:  cobra.ExactArgs(1),
	RunE:  runObjectErrors,
}

func init() {
	ObjectCmd.AddCommand(objectShowCmd)
	ObjectCmd.AddCommand(objectErrorsCmd)
}

func runObjectShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	p, err := buildPipeline(database)
	if err != nil {
		return err
	}

	obj, err := p.objects.GetObject(ctx, args[0])
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Harvest object %s", obj.ID)
	pterm.Printfln("GUID:      %s", obj.GUID)
	pterm.Printfln("Source:    %s", obj.SourceID)
	pterm.Printfln("Job:       %s", obj.JobID)
	pterm.Printfln("Current:   %v", obj.Current)
	if obj.RecordID != nil {
		pterm.Printfln("Record:    %s", *obj.RecordID)
	}
	if obj.MetadataModifiedDate != nil {
		pterm.Printfln("Modified:  %s", obj.MetadataModifiedDate.Format("2006-01-02 15:04:05"))
	}
	if status := obj.Extra("status"); status != "" {
		pterm.Printfln("Status:    %s", status)
	}
	return nil
}

func runObjectErrors(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	p, err := buildPipeline(database)
	if err != nil {
		return err
	}

	objErrors, err := p.objects.ObjectErrors(ctx, args[0])
	if err != nil {
		return err
	}
	if len(objErrors) == 0 {
		pterm.Info.Println("No recorded errors")
		return nil
	}

	rows := pterm.TableData{{"Stage", "Line", "Message"}}
	for _, oe := range objErrors {
		line := ""
		if oe.Line != nil {
			line = strconv.Itoa(*oe.Line)
		}
		rows = append(rows, []string{oe.Stage, line, oe.Message})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
