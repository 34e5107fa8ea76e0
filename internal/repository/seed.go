package repository

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"evolv/internal/models"
	"evolv/internal/placeholder"
)

type seedArtwork struct {
	id, ownerID, title string
	width, height      int
	createdAt          string
	editedAfter        time.Duration
	tags               []string
	size               models.Size
	prompts            []string
}

var curated = []seedArtwork{
	{"1", "1", "Cyberpunk Cityscape", 512, 768, "2024-01-15T10:30:00Z", 3*time.Hour + 50*time.Minute,
		[]string{"cyberpunk", "city", "neon"}, models.SizeLarge, []string{
			"A futuristic cyberpunk cityscape with neon lights",
			"Add flying cars and holographic advertisements",
			"Make it rain with more atmospheric effects",
		}},
	{"2", "1", "Abstract Portrait", 400, 400, "2024-01-14T16:45:00Z", time.Hour + 45*time.Minute,
		[]string{"portrait", "abstract", "art"}, models.SizeMedium, []string{
			"Abstract geometric portrait with vibrant colors",
			"Add more geometric patterns and depth",
		}},
	{"3", "2", "Dragon Fantasy", 600, 400, "2024-01-13T12:20:00Z", 2*time.Hour + 50*time.Minute,
		[]string{"dragon", "fantasy", "medieval"}, models.SizeMedium, []string{
			"A majestic dragon soaring over medieval castle",
			"Add fire breathing and more dramatic lighting",
			"Include knights on the ground looking up",
			"Make the scene more epic with storm clouds",
		}},
	{"4", "1", "Minimalist Nature", 350, 500, "2024-01-12T09:15:00Z", 2*time.Hour + 30*time.Minute,
		[]string{"nature", "minimalist", "zen"}, models.SizeSmall, []string{
			"Minimalist zen garden with single tree",
			"Add subtle morning mist and soft lighting",
		}},
	{"5", "3", "Space Odyssey", 500, 700, "2024-01-11T14:30:00Z", 2*time.Hour + 50*time.Minute,
		[]string{"space", "stars", "cosmic"}, models.SizeLarge, []string{
			"Deep space with nebulae and distant galaxies",
			"Add a lone spaceship exploring the cosmos",
			"Include a mysterious alien structure",
		}},
	{"6", "2", "Urban Sketches", 380, 300, "2024-01-10T08:45:00Z", time.Hour + 45*time.Minute,
		[]string{"urban", "sketch", "street"}, models.SizeSmall, []string{
			"Quick urban street scene sketch style",
			"Add more pedestrians and street life",
		}},
	{"7", "1", "Crystal Caves", 450, 600, "2024-01-09T13:20:00Z", 2*time.Hour + 55*time.Minute,
		[]string{"crystal", "cave", "magical"}, models.SizeMedium, []string{
			"Mystical crystal cave with glowing formations",
			"Add an explorer with a lantern",
			"Include magical floating crystals",
		}},
	{"8", "3", "Vintage Car", 520, 350, "2024-01-08T11:10:00Z", 2*time.Hour + 35*time.Minute,
		[]string{"vintage", "car", "retro"}, models.SizeMedium, []string{
			"Classic 1960s muscle car in pristine condition",
			"Set it on a desert highway at sunset",
		}},
}

var templates = []struct {
	title string
	tags  []string
}{
	{"Ocean Waves", []string{"ocean", "nature", "blue"}},
	{"Mountain Peak", []string{"mountain", "landscape", "snow"}},
	{"Forest Path", []string{"forest", "path", "green"}},
	{"Desert Dunes", []string{"desert", "sand", "golden"}},
	{"City Lights", []string{"city", "night", "lights"}},
	{"Flower Garden", []string{"flowers", "garden", "colorful"}},
	{"Starry Night", []string{"stars", "night", "sky"}},
	{"Ancient Ruins", []string{"ruins", "ancient", "historical"}},
}

const generatedCount = 50

// DefaultSeed returns the built-in gallery: the curated artworks followed by
// template-generated ones for infinite scrolling. The result is identical on
// every call.
func DefaultSeed() []models.Artwork {
	out := make([]models.Artwork, 0, len(curated)+generatedCount)
	for _, s := range curated {
		created := mustTime(s.createdAt)
		art := models.Artwork{
			ID:            s.id,
			OwnerID:       s.ownerID,
			Title:         s.title,
			BaseImageURL:  placeholder.URL(s.width, s.height, ""),
			CoverImageURL: placeholder.URL(s.width, s.height, ""),
			Public:        true,
			CreatedAt:     created,
			UpdatedAt:     created.Add(s.editedAfter),
			Tags:          append([]string(nil), s.tags...),
			Size:          s.size,
		}
		for i, prompt := range s.prompts {
			art.Evolutions = append(art.Evolutions, seedEvolution(art.ID, i+1, prompt, created))
		}
		out = append(out, art)
	}

	sizes := []models.Size{models.SizeSmall, models.SizeMedium, models.SizeLarge}
	owners := []string{"1", "2", "3"}
	base := mustTime("2024-01-08T00:00:00Z")
	for i := 0; i < generatedCount; i++ {
		tpl := templates[i%len(templates)]
		size := sizes[i%len(sizes)]
		w, h := generatedDimensions(size, i)
		created := base.Add(-time.Duration(i+1) * 24 * time.Hour)
		art := models.Artwork{
			ID:            fmt.Sprintf("generated-%d", i+len(curated)+1),
			OwnerID:       owners[i%len(owners)],
			Title:         fmt.Sprintf("%s %d", tpl.title, i+1),
			BaseImageURL:  placeholder.URL(w, h, ""),
			CoverImageURL: placeholder.URL(w, h, ""),
			Public:        true,
			CreatedAt:     created,
			UpdatedAt:     created.Add(time.Hour),
			Tags:          append([]string(nil), tpl.tags...),
			Size:          size,
		}
		art.Evolutions = []models.Evolution{
			seedEvolution(art.ID, 1, "Create a beautiful "+strings.ToLower(tpl.title), created),
		}
		out = append(out, art)
	}
	return out
}

// DefaultUsers returns the built-in user directory.
func DefaultUsers() []models.User {
	return []models.User{
		{ID: "1", Name: "Alex Chen", Email: "alex@evolv.dev", Username: "alexc", AvatarURL: placeholder.URL(40, 40, "")},
		{ID: "2", Name: "Sam Rivera", Email: "sam@evolv.dev", Username: "samr", AvatarURL: placeholder.URL(40, 40, "")},
		{ID: "3", Name: "Maya Patel", Email: "maya@evolv.dev", Username: "mayap", AvatarURL: placeholder.URL(40, 40, "")},
	}
}

type seedFile struct {
	Artworks []models.Artwork `yaml:"artworks"`
	Users    []models.User    `yaml:"users"`
}

// LoadSeedFile reads artworks and users from a YAML file. Missing sections
// fall back to the built-in seed.
func LoadSeedFile(path string) ([]models.Artwork, []models.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, art := range f.Artworks {
		if art.ID == "" {
			return nil, nil, fmt.Errorf("seed artwork %d has no id", i)
		}
		switch art.Size {
		case models.SizeSmall, models.SizeMedium, models.SizeLarge:
		case "":
			f.Artworks[i].Size = models.SizeMedium
		default:
			return nil, nil, fmt.Errorf("seed artwork %s has invalid size %q", art.ID, art.Size)
		}
	}

	if len(f.Artworks) == 0 {
		f.Artworks = DefaultSeed()
	}
	if len(f.Users) == 0 {
		f.Users = DefaultUsers()
	}
	return f.Artworks, f.Users, nil
}

func seedEvolution(artworkID string, step int, prompt string, created time.Time) models.Evolution {
	steps := 50
	guidance := 7.5
	strength := 0.8
	seed := seedFor(artworkID, step)
	return models.Evolution{
		ID:        fmt.Sprintf("evo-%s-%d", artworkID, step),
		Step:      step,
		Prompt:    prompt,
		ImageURL:  placeholder.URL(512, 512, fmt.Sprintf("Evolution%d", step)),
		CreatedAt: created.Add(time.Duration(step-1) * 30 * time.Minute),
		Params: &models.EvolutionParams{
			Steps:         &steps,
			GuidanceScale: &guidance,
			Strength:      &strength,
			Seed:          &seed,
		},
	}
}

func seedFor(artworkID string, step int) int64 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s/%d", artworkID, step)
	return int64(h.Sum32() % 1000000)
}

func generatedDimensions(size models.Size, i int) (int, int) {
	switch size {
	case models.SizeSmall:
		return 300 + i%100, 400 + i%150
	case models.SizeLarge:
		return 500 + i%200, 700 + i%250
	default:
		return 400 + i%150, 500 + i%200
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
