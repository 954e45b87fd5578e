package service

import (
	"context"
	"fmt"

	"github.com/ct-protocol-manual/internal/auth"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/rs/zerolog"
)

type sampleUser struct {
	name, email, password string
}

var sampleUsers = []sampleUser{
	{"管理者", "admin@hospital.jp", "Admin1126"},
	{"技師", "tech@hospital.jp", "Tech123"},
}

var sampleDiseases = []models.Disease{
	{
		Name:           "脳梗塞",
		Description:    "脳血管が詰まる疾患",
		Keywords:       "脳梗塞,stroke",
		Scan:           models.ProtocolSection{Label: "頭部造影CT", Detail: "造影剤使用"},
		Contrast:       models.ProtocolSection{Label: "あり", Detail: "造影剤注入"},
		PostProcessing: models.ProtocolSection{Label: "緊急検査", Detail: "迅速な対応"},
	},
	{
		Name:           "肺炎",
		Description:    "肺の感染症",
		Keywords:       "肺炎,pneumonia",
		Scan:           models.ProtocolSection{Label: "胸部CT", Detail: "単純CT"},
		Contrast:       models.ProtocolSection{Label: "なし", Detail: "造影不要"},
		PostProcessing: models.ProtocolSection{Label: "標準撮影", Detail: "呼吸停止"},
	},
}

var sampleNotices = []models.Notice{
	{Title: "システム運用開始", Body: "CT医療システムの運用を開始しました。"},
	{Title: "利用方法について", Body: "疾患検索機能をご活用ください。"},
}

var sampleProtocols = []models.Protocol{
	{Category: models.CategoryHead, Title: "頭部単純CT", Content: "スライス厚: 5mm\n電圧: 120kV\n電流: 250mA"},
	{Category: models.CategoryChest, Title: "胸部造影CT", Content: "スライス厚: 1mm\n電圧: 120kV\n造影剤: 100ml"},
}

// Seed inserts the sample users and content. Users are skipped when their email
// exists; each content table is only filled while it is empty.
func Seed(ctx context.Context, repos *repository.Repositories, log zerolog.Logger) error {
	log = log.With().Str("service", "seed").Logger()

	for _, su := range sampleUsers {
		existing, err := repos.User.GetByEmail(ctx, su.email)
		if err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		if existing != nil {
			continue
		}
		hash, err := auth.HashPassword(su.password)
		if err != nil {
			return err
		}
		if err := repos.User.Create(ctx, &models.User{Name: su.name, Email: su.email, PasswordHash: hash}); err != nil {
			return fmt.Errorf("seed user %s: %w", su.email, err)
		}
		log.Info().Str("email", su.email).Msg("Seeded user")
	}

	if n, err := repos.Disease.Count(ctx); err != nil {
		return fmt.Errorf("seed diseases: %w", err)
	} else if n == 0 {
		for i := range sampleDiseases {
			d := sampleDiseases[i]
			if err := repos.Disease.Create(ctx, &d); err != nil {
				return fmt.Errorf("seed disease %s: %w", d.Name, err)
			}
		}
		log.Info().Int("count", len(sampleDiseases)).Msg("Seeded diseases")
	}

	if n, err := repos.Notice.Count(ctx); err != nil {
		return fmt.Errorf("seed notices: %w", err)
	} else if n == 0 {
		for i := range sampleNotices {
			notice := sampleNotices[i]
			if err := repos.Notice.Create(ctx, &notice); err != nil {
				return fmt.Errorf("seed notice %s: %w", notice.Title, err)
			}
		}
		log.Info().Int("count", len(sampleNotices)).Msg("Seeded notices")
	}

	if n, err := repos.Protocol.Count(ctx); err != nil {
		return fmt.Errorf("seed protocols: %w", err)
	} else if n == 0 {
		for i := range sampleProtocols {
			p := sampleProtocols[i]
			if err := repos.Protocol.Create(ctx, &p); err != nil {
				return fmt.Errorf("seed protocol %s: %w", p.Title, err)
			}
		}
		log.Info().Int("count", len(sampleProtocols)).Msg("Seeded protocols")
	}

	return nil
}
