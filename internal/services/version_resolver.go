package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/reelproof/server/internal/models"
)

// Чистые функции группировки версий по сериям. Ключ серии - явный series_key
// либо имя файла без ведущего маркера версии (см. models.AssetVersion).
// Никакого разделяемого состояния: безопасно для любого числа параллельных вызовов.

// GroupBySeries группирует плоский набор версий в серии. Версии внутри серии
// отсортированы по убыванию номера; "последняя" версия - первая в срезе.
//
// Номера версий внутри серии обязаны быть уникальными, но данные бывают грязными:
// при дубликате сортировка устойчиво добирает порядок по created_at по убыванию,
// а для каждой затронутой серии возвращается предупреждение о целостности данных.
// Разрешение никогда не прерывается из-за дубликата.
func GroupBySeries(assets []models.AssetVersion) (map[string][]models.AssetVersion, []string) {
	groups := make(map[string][]models.AssetVersion)
	for _, asset := range assets {
		key := asset.EffectiveSeriesKey()
		groups[key] = append(groups[key], asset)
	}

	warnings := make([]string, 0)
	for key, versions := range groups {
		sort.SliceStable(versions, func(i, j int) bool {
			if versions[i].VersionNumber != versions[j].VersionNumber {
				return versions[i].VersionNumber > versions[j].VersionNumber
			}
			return versions[i].CreatedAt.After(versions[j].CreatedAt)
		})

		seen := make(map[int]bool, len(versions))
		for _, v := range versions {
			if seen[v.VersionNumber] {
				warning := fmt.Sprintf("серия '%s': номер версии %d встречается более одного раза", key, v.VersionNumber)
				warnings = append(warnings, warning)
				log.Printf("[VersionResolver] Предупреждение о целостности данных: %s", warning)
				break
			}
			seen[v.VersionNumber] = true
		}
	}

	return groups, warnings
}

// LatestInSeries возвращает последнюю (с максимальным номером) версию указанной
// серии. "Последней" считается версия с наибольшим номером, даже если created_at
// с этим не согласен: номер - единственный источник истины о порядке версий.
func LatestInSeries(assets []models.AssetVersion, seriesKey string) (*models.AssetVersion, error) {
	groups, _ := GroupBySeries(assets)
	versions, ok := groups[seriesKey]
	if !ok || len(versions) == 0 {
		return nil, ErrSeriesNotFound
	}
	latest := versions[0]
	return &latest, nil
}

// Кастомные ошибки резолвера версий.
var (
	ErrSeriesNotFound = errors.New("серия не найдена")
)
