package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/ftrvxmtrx/tga"
	"github.com/juju/loggo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	wad "github.com/stuarthighley/wadkit"
)

var logger = loggo.GetLogger("wadkit.cmd")

var (
	flagMeta   string
	flagLog    string
	flagTime   float32
	flagOut    string
	flagFormat string
	flagSize   int
	flagSkill  int
	flagMulti  bool
)

func openArchive(path string) (*wad.Archive, error) {
	return wad.Open(path, flagMeta)
}

// walkLevel reads and walks a level, collecting everything it produces. dir may be nil.
func walkLevel(a *wad.Archive, name string, dir *wad.TextureDirectory) (*wad.Collector, wad.Stats, error) {
	level, err := a.ReadLevel(name)
	if err != nil {
		return nil, wad.Stats{}, err
	}
	c := &wad.Collector{}
	var sizer wad.TextureSizer
	if dir != nil {
		sizer = dir
	}
	if flagSkill < int(wad.SkillAny) || flagSkill > int(wad.SkillHard) {
		return nil, wad.Stats{}, errors.Errorf("unknown skill %v", flagSkill)
	}
	stats, err := wad.NewWalker(level, a.Metadata(), sizer, c).
		SetSkill(wad.Skill(flagSkill), flagMulti).
		Walk()
	return c, stats, err
}

func encode(path string, img image.Image) error {
	var enc func(io.Writer, image.Image) error
	switch flagFormat {
	case "png":
		enc = png.Encode
	case "tga":
		enc = tga.Encode
	default:
		return errors.Errorf("unknown format %q", flagFormat)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := enc(f, img); err != nil {
		return errors.Wrapf(err, "write %v", path)
	}
	return f.Close()
}

var levelsCmd = &cobra.Command{
	Use:   "levels WAD",
	Short: "List the levels of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		for _, name := range a.LevelNames() {
			fmt.Println(name)
		}
		return nil
	},
}

var levelCmd = &cobra.Command{
	Use:   "level WAD NAME",
	Short: "Walk a level and print what it contains",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		dir, err := wad.NewTextureDirectory(a)
		if err != nil {
			return err
		}
		c, stats, err := walkLevel(a, args[1], dir)
		if err != nil {
			return err
		}
		fmt.Printf("nodes %v, subsectors %v, segs %v\n", stats.Nodes, stats.Leaves, stats.Segs)
		fmt.Printf("walls %v, sky quads %v, polygons %v\n", stats.Walls, stats.SkyQuads, stats.Polys)
		fmt.Printf("decors %v, markers %v, triggers %v, skipped %v, filtered %v\n",
			stats.Decors, stats.Markers, stats.Triggers, stats.Skipped, stats.Filtered)
		fmt.Printf("textures %v, flats %v, sprites %v\n", len(c.TextureNames()), len(c.FlatNames()), len(c.SpriteNames()))
		for _, m := range c.Markers {
			fmt.Printf("%v %v at %v\n", m.Kind, m.Player, m.Pos)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree WAD NAME",
	Short: "Print the BSP tree of a level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		level, err := a.ReadLevel(args[1])
		if err != nil {
			return err
		}
		return wad.PrintTree(os.Stdout, level)
	},
}

var lightsCmd = &cobra.Command{
	Use:   "lights WAD NAME",
	Short: "Print the light of every sector at a point in time",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		level, err := a.ReadLevel(args[1])
		if err != nil {
			return err
		}
		table, err := wad.NewLightTable(level)
		if err != nil {
			return err
		}
		values := table.Fill(flagTime, nil)
		for i, info := range table {
			effect := "-"
			if info.Effect != nil {
				effect = info.Effect.Kind.String()
			}
			fmt.Printf("%4d %-9v %.3f %3d\n", i, effect, info.Level, values[i])
		}
		return nil
	},
}

type boundsRecord struct {
	Category  string `yaml:"category"`
	Name      string `yaml:"name"`
	Atlas     int    `yaml:"atlas"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	NumFrames int    `yaml:"frames"`
	RowHeight int    `yaml:"row_height"`
}

var atlasCmd = &cobra.Command{
	Use:   "atlas WAD NAME",
	Short: "Pack the images a level uses into atlases",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		dir, err := wad.NewTextureDirectory(a)
		if err != nil {
			return err
		}
		c, _, err := walkLevel(a, args[1], dir)
		if err != nil {
			return err
		}

		// Walls, flats and sprites are separate namespaces and may share names.
		categories := []struct {
			name    string
			entries []wad.AtlasEntry
		}{
			{"walls", dir.WallEntries(c.TextureNames())},
			{"flats", dir.FlatEntries(c.FlatNames())},
			{"sprites", dir.SpriteEntries(c.SpriteFrameSets())},
		}
		if err := os.MkdirAll(flagOut, 0o755); err != nil {
			return err
		}
		palette, colormap := &dir.Palettes()[0], &dir.ColorMaps()[0]
		var records []boundsRecord
		for _, category := range categories {
			if len(category.entries) == 0 {
				continue
			}
			set, err := wad.PackAtlases(category.entries, wad.AtlasOptions{Size: flagSize})
			if err != nil {
				return errors.WithMessage(err, category.name)
			}
			for i, atlas := range set.Atlases {
				path := filepath.Join(flagOut, fmt.Sprintf("%v_%v_%d.%v", args[1], category.name, i, flagFormat))
				if err := encode(path, atlas.Image(palette, colormap)); err != nil {
					return err
				}
				logger.Infof("Wrote %v", path)
			}
			for name, b := range set.Bounds {
				records = append(records, boundsRecord{
					Category: category.name, Name: name.String(), Atlas: b.Atlas, X: b.Pos.X, Y: b.Pos.Y,
					Width: b.Size.X, Height: b.Size.Y, NumFrames: b.NumFrames, RowHeight: b.RowHeight,
				})
			}
		}
		sort.Slice(records, func(i, j int) bool {
			if records[i].Category != records[j].Category {
				return records[i].Category < records[j].Category
			}
			return records[i].Name < records[j].Name
		})
		out, err := yaml.Marshal(records)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(flagOut, args[1]+".yaml"), out, 0o644)
	},
}

var texturesCmd = &cobra.Command{
	Use:   "textures WAD",
	Short: "Export every composed wall texture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		dir, err := wad.NewTextureDirectory(a)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(flagOut, 0o755); err != nil {
			return err
		}

		names := dir.TextureNames()
		palette, colormap := &dir.Palettes()[0], &dir.ColorMaps()[0]
		pbar := pb.New(len(names))
		pbar.SetRefreshRate(time.Second / 10)
		pbar.Start()
		for _, name := range names {
			pic, _ := dir.Texture(name)
			path := filepath.Join(flagOut, name.String()+"."+flagFormat)
			if err := encode(path, pic.Image(palette, colormap)); err != nil {
				pbar.Finish()
				return err
			}
			pbar.Increment()
		}
		pbar.Finish()
		for _, err := range dir.Failures() {
			logger.Warningf("%v", err)
		}
		return nil
	},
}

var rootCmd = &cobra.Command{
	Use:   "wadkit",
	Short: "wadkit reads Doom WAD archives.",
	Long:  `wadkit lists levels, walks their BSP trees, and exports textures and atlases from Doom WAD archives.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagLog != "" {
			lvl, ok := loggo.ParseLevel(flagLog)
			if ok {
				loggo.GetLogger("").SetLogLevel(lvl)
			} else {
				logger.Warningf("Invalid log level %s specified", flagLog)
			}
		}
	},
	SilenceUsage: true,
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMeta, "meta", "", "metadata file (default built in Doom metadata)")
	rootCmd.PersistentFlags().StringVar(&flagLog, "log", "info", "log level (trace, debug, info, warning, error, critical)")
	lightsCmd.Flags().Float32Var(&flagTime, "time", 0, "time in seconds")
	for _, cmd := range []*cobra.Command{atlasCmd, texturesCmd} {
		cmd.Flags().StringVar(&flagOut, "out", ".", "output directory")
		cmd.Flags().StringVar(&flagFormat, "format", "png", "image format (png, tga)")
	}
	for _, cmd := range []*cobra.Command{levelCmd, atlasCmd} {
		cmd.Flags().IntVar(&flagSkill, "skill", 0, "only things of a skill: 1 easy, 2 medium, 3 hard (default every thing)")
		cmd.Flags().BoolVar(&flagMulti, "multiplayer", false, "include multiplayer only things")
	}
	atlasCmd.Flags().IntVar(&flagSize, "size", wad.DefaultAtlasSize, "atlas width and height")

	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(lightsCmd)
	rootCmd.AddCommand(atlasCmd)
	rootCmd.AddCommand(texturesCmd)
}
