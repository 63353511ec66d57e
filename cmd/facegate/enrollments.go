package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/facegate/internal/app"
)

var exportOut string

var enrollmentsCmd = &cobra.Command{
	Use:     "enrollments",
	Aliases: []string{"enr"},
	Short:   "Manage stored enrollments",
}

var enrollmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrollments",
	RunE: func(cmd *cobra.Command, args []string) error {
		enrollments, err := enrollmentService().List()
		if err != nil {
			return fmt.Errorf("failed to list enrollments: %w", err)
		}

		if len(enrollments) == 0 {
			fmt.Println("No enrollments found in database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCAPTURES\tUPDATED")
		fmt.Fprintln(w, "--\t----\t--------\t-------")
		for _, e := range enrollments {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Name, e.Captures, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var enrollmentsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an enrollment and its descriptors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := enrollmentService().Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete %s: %w", args[0], err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var enrollmentsExportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Write an enrollment's descriptor document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := enrollmentService().Export(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", args[0], err)
		}

		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", exportOut)
		return nil
	},
}

var enrollmentsImportCmd = &cobra.Command{
	Use:   "import NAME FILE",
	Short: "Store a descriptor document under NAME",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		enr, n, err := enrollmentService().Import(cmd.Context(), args[0], data)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", args[1], err)
		}
		fmt.Printf("Imported %d descriptors as %s (%s)\n", n, enr.Name, enr.ID)
		return nil
	},
}

// enrollmentService returns the enrollment service over the shared store.
func enrollmentService() *app.Enrollments {
	// closed with the process
	return app.NewEnrollments(db, connectCache(), cfg.Store.ExportDir)
}

func init() {
	enrollmentsExportCmd.Flags().StringVarP(&exportOut, "output", "o", app.ExportFilename, "output file, - for stdout")

	enrollmentsCmd.AddCommand(enrollmentsListCmd, enrollmentsDeleteCmd, enrollmentsExportCmd, enrollmentsImportCmd)
	rootCmd.AddCommand(enrollmentsCmd)
}
