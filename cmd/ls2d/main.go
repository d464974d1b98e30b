/*
Copyright © 2024 the LS2D authors.
This file is part of LS2D.

LS2D is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LS2D is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LS2D.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command ls2d derives large-scale forcings for limited-area
// atmospheric models from ERA5 reanalysis data.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	ls2d "github.com/rhhjanssen/LS2D"
)

var (
	configFile string

	log = logrus.New()
)

// rootCmd is the main command.
var rootCmd = &cobra.Command{
	Use:   "ls2d",
	Short: "Derive large-scale forcings from ERA5 reanalysis data.",
	Long: `ls2d turns gridded ERA5 reanalysis data into the single-column
forcing time series (advective tendencies, geostrophic wind, subsidence
and mean profiles) that large-eddy simulations and single-column models
are driven with.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ls2d",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ls2d v%s\n", ls2d.Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Derive the forcings specified in the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfigFile(configFile)
		if err != nil {
			return err
		}
		return Run(cfg)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./ls2d.toml", "configuration file location")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
