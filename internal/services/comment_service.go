package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/repository"
)

// Фиксированная палитра цветов авторов. Цвета назначаются циклически
// по порядку первого появления автора в текущем наборе комментариев.
var authorPalette = []string{
	"#E5484D", "#F76B15", "#FFC53D", "#30A46C",
	"#00A2C7", "#3E63DD", "#8E4EC6", "#E93D82",
}

// CommentService определяет интерфейс для сервиса ленты комментариев.
type CommentService interface {
	// AppendViaGrant добавляет комментарий по гранту ссылки общего доступа.
	// userID передается, если гость по ссылке на самом деле аутентифицирован.
	AppendViaGrant(grant *models.ScopedGrant, userID *int64, req models.AppendCommentRequest) (*models.Comment, error)
	// AppendAsUser добавляет комментарий от аутентифицированного пользователя
	// напрямую, без ссылки общего доступа.
	AppendAsUser(userID int64, req models.AppendCommentRequest) (*models.Comment, error)
	ListViaGrant(grant *models.ScopedGrant) ([]models.CommentView, error)
	ListForVersion(userID int64, versionID int64) ([]models.CommentView, error)
	MarkResolved(userID int64, commentID int64) (*models.Comment, error)
}

// commentService реализует логику ленты комментариев.
var _ CommentService = (*commentService)(nil) // Проверка соответствия интерфейсу

type commentService struct {
	commentRepo    repository.CommentRepository
	assetRepo      repository.AssetRepository
	collectionRepo repository.CollectionRepository
	userRepo       repository.UserRepository
}

// NewCommentService создает новый экземпляр сервиса комментариев.
func NewCommentService(
	commentRepo repository.CommentRepository,
	assetRepo repository.AssetRepository,
	collectionRepo repository.CollectionRepository,
	userRepo repository.UserRepository,
) CommentService {
	return &commentService{
		commentRepo:    commentRepo,
		assetRepo:      assetRepo,
		collectionRepo: collectionRepo,
		userRepo:       userRepo,
	}
}

// resolveAuthorContext классифицирует автора запроса в один из трех классов.
// Для аутентифицированных авторов отображаемое имя всегда берется из учетной
// записи, а не из запроса: клиентское имя приняло бы подмену кого угодно.
func (s *commentService) resolveAuthorContext(
	ctx context.Context,
	userID *int64,
	asset *models.AssetVersion,
	guestDisplayName string,
) (*models.AuthorContext, error) {
	if userID == nil {
		name := strings.TrimSpace(guestDisplayName)
		if name == "" {
			return nil, ErrGuestNameRequired
		}
		return &models.AuthorContext{Class: models.AuthorGuest, DisplayName: name}, nil
	}

	user, err := s.userRepo.GetUserByID(ctx, *userID)
	if err != nil {
		log.Printf("[CommentService] Не удалось получить пользователя %d: %v", *userID, err)
		return nil, errors.New("внутренняя ошибка сервера при определении автора")
	}
	return authorFromUser(user, asset), nil
}

// authorFromUser классифицирует аутентифицированного автора относительно актива.
func authorFromUser(user *models.User, asset *models.AssetVersion) *models.AuthorContext {
	author := &models.AuthorContext{
		Class:       models.AuthorIndividual,
		UserID:      &user.ID,
		DisplayName: user.Username,
	}
	if user.TeamID != nil && asset.TeamID != nil && *user.TeamID == *asset.TeamID {
		author.Class = models.AuthorTeamMember
		author.TeamID = user.TeamID
		author.TeamName = user.TeamName
	}
	return author
}

// AppendViaGrant добавляет комментарий по гранту. Версия обязана входить
// в область действия гранта; тело после обрезки пробелов непустое.
// Таймкод за пределами длительности не отклоняется: длительность может быть
// еще неизвестна, позиция маркера ограничивается при отображении.
func (s *commentService) AppendViaGrant(
	grant *models.ScopedGrant,
	userID *int64,
	req models.AppendCommentRequest,
) (*models.Comment, error) {
	ctx := context.Background()

	version, err := s.versionInGrantScope(ctx, grant, req.AssetVersionID)
	if err != nil {
		return nil, err
	}

	author, err := s.resolveAuthorContext(ctx, userID, version, req.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, author, version, req)
}

// AppendAsUser добавляет комментарий от аутентифицированного пользователя.
// Без гранта прямой доступ к ленте есть только у тех, у кого есть право записи
// на версию: загрузившего и участников команды-владельца.
func (s *commentService) AppendAsUser(userID int64, req models.AppendCommentRequest) (*models.Comment, error) {
	ctx := context.Background()

	version, err := s.assetRepo.GetVersionByID(ctx, req.AssetVersionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при получении версии")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении пользователя")
	}
	if !canModifyAsset(user, version) {
		log.Printf("[CommentService] Пользователь %d не имеет доступа к ленте версии %d", userID, version.ID)
		return nil, ErrForbidden
	}

	return s.append(ctx, authorFromUser(user, version), version, req)
}

// append выполняет общую для обоих путей вставку комментария.
func (s *commentService) append(
	ctx context.Context,
	author *models.AuthorContext,
	version *models.AssetVersion,
	req models.AppendCommentRequest,
) (*models.Comment, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	timecode := req.TimecodeSeconds
	if timecode < 0 {
		timecode = 0
	}

	comment := &models.Comment{
		SeriesKey:         version.EffectiveSeriesKey(),
		AssetVersionID:    version.ID,
		TimecodeSeconds:   timecode,
		Body:              body,
		AuthorClass:       author.Class,
		AuthorDisplayName: author.DisplayName,
		AuthorTeamName:    author.TeamName,
		AuthorUserID:      author.UserID,
	}

	created, err := s.commentRepo.CreateComment(ctx, comment)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при добавлении комментария")
	}

	log.Printf("[CommentService] Комментарий ID %d добавлен (%s '%s', версия %d, таймкод %.2f)",
		created.ID, created.AuthorClass, created.AuthorDisplayName, created.AssetVersionID, created.TimecodeSeconds)
	return created, nil
}

// ListViaGrant возвращает ленту комментариев в области действия гранта,
// подготовленную к отображению: цвета авторов и позиции маркеров.
func (s *commentService) ListViaGrant(grant *models.ScopedGrant) ([]models.CommentView, error) {
	ctx := context.Background()

	var (
		comments []models.Comment
		err      error
	)
	switch grant.ScopeType {
	case models.ScopeSingleVersion:
		version, verErr := s.assetRepo.GetVersionByID(ctx, grant.ScopeRef)
		if verErr != nil {
			if errors.Is(verErr, repository.ErrVersionNotFound) {
				return nil, ErrVersionNotFound
			}
			return nil, errors.New("внутренняя ошибка сервера при получении комментариев")
		}
		// Серия читается в границах владельца версии ссылки, а не по голому
		// ключу: тезка серии у чужого владельца в ленту не попадает
		comments, err = s.commentRepo.ListBySeries(ctx, version.EffectiveSeriesKey(), version.UploaderID, version.TeamID)
	case models.ScopeCuratedCollection:
		ids, idsErr := s.collectionRepo.ListItemVersionIDs(ctx, grant.ScopeRef)
		if idsErr != nil {
			return nil, errors.New("внутренняя ошибка сервера при получении комментариев")
		}
		comments, err = s.commentRepo.ListByVersionIDs(ctx, ids)
	default:
		return nil, errors.New("неизвестный тип области действия гранта")
	}
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении комментариев")
	}

	return s.buildViews(ctx, comments), nil
}

// ListForVersion возвращает ленту комментариев серии для аутентифицированного
// пользователя. Как и AppendAsUser, требует права записи на версию: посторонний
// аутентифицированный пользователь читает чужие ленты только по гранту ссылки.
func (s *commentService) ListForVersion(userID int64, versionID int64) ([]models.CommentView, error) {
	ctx := context.Background()

	version, err := s.assetRepo.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при получении версии")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении пользователя")
	}
	if !canModifyAsset(user, version) {
		log.Printf("[CommentService] Пользователь %d не имеет доступа к ленте версии %d", userID, versionID)
		return nil, ErrForbidden
	}

	comments, err := s.commentRepo.ListBySeries(ctx, version.EffectiveSeriesKey(), version.UploaderID, version.TeamID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении комментариев")
	}

	return s.buildViews(ctx, comments), nil
}

// MarkResolved отмечает комментарий решенным. Разрешено только тем, у кого есть
// право записи на актив-владелец; произвольные гости отмечать не могут.
func (s *commentService) MarkResolved(userID int64, commentID int64) (*models.Comment, error) {
	ctx := context.Background()

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при получении комментария")
	}

	version, err := s.assetRepo.GetVersionByID(ctx, comment.AssetVersionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при получении версии")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении пользователя")
	}
	if !canModifyAsset(user, version) {
		log.Printf("[CommentService] Пользователь %d не имеет права отмечать комментарий %d", userID, commentID)
		return nil, ErrForbidden
	}

	resolved, err := s.commentRepo.SetResolved(ctx, commentID, true)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при отметке комментария")
	}
	return resolved, nil
}

// versionInGrantScope проверяет, что версия входит в область действия гранта,
// и возвращает ее. Для single_version разрешена только сама версия ссылки;
// для подборки - любая входящая в нее версия.
func (s *commentService) versionInGrantScope(
	ctx context.Context,
	grant *models.ScopedGrant,
	versionID int64,
) (*models.AssetVersion, error) {
	switch grant.ScopeType {
	case models.ScopeSingleVersion:
		if versionID != grant.ScopeRef {
			log.Printf("[CommentService] Версия %d вне области действия гранта (scope %d)", versionID, grant.ScopeRef)
			return nil, ErrForbidden
		}
	case models.ScopeCuratedCollection:
		ids, err := s.collectionRepo.ListItemVersionIDs(ctx, grant.ScopeRef)
		if err != nil {
			return nil, errors.New("внутренняя ошибка сервера при проверке области действия")
		}
		found := false
		for _, id := range ids {
			if id == versionID {
				found = true
				break
			}
		}
		if !found {
			log.Printf("[CommentService] Версия %d не входит в подборку %d", versionID, grant.ScopeRef)
			return nil, ErrForbidden
		}
	default:
		return nil, errors.New("неизвестный тип области действия гранта")
	}

	version, err := s.assetRepo.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при получении версии")
	}
	return version, nil
}

// buildViews подготавливает комментарии к отображению: цвет автора и позиция
// маркера. Длительности версий подтягиваются одним проходом по задетым версиям.
func (s *commentService) buildViews(ctx context.Context, comments []models.Comment) []models.CommentView {
	durations := make(map[int64]*float64)
	for _, c := range comments {
		if _, ok := durations[c.AssetVersionID]; ok {
			continue
		}
		version, err := s.assetRepo.GetVersionByID(ctx, c.AssetVersionID)
		if err != nil {
			durations[c.AssetVersionID] = nil // Версия удалена - маркер не размещаем
			continue
		}
		durations[c.AssetVersionID] = version.DurationSeconds
	}

	colors := AuthorColors(comments)
	views := make([]models.CommentView, 0, len(comments))
	for i, c := range comments {
		views = append(views, models.CommentView{
			Comment:        c,
			Color:          colors[i],
			MarkerPosition: MarkerPosition(c.TimecodeSeconds, durations[c.AssetVersionID]),
		})
	}
	return views
}

// authorKey - идентичность автора для назначения цвета: имя, класс и команда.
type authorKey struct {
	displayName string
	class       string
	teamName    string
}

// authorKeyOf строит ключ автора комментария.
func authorKeyOf(c models.Comment) authorKey {
	key := authorKey{displayName: c.AuthorDisplayName, class: c.AuthorClass}
	if c.AuthorTeamName != nil {
		key.teamName = *c.AuthorTeamName
	}
	return key
}

// AuthorColors назначает каждому комментарию цвет его автора: различные авторы
// получают цвета из палитры циклически, по порядку первого появления в переданном
// наборе. Назначение пересчитывается при каждом вызове и нигде не хранится: для
// одного и того же набора результат детерминирован независимо от истории вызовов,
// но может сдвигаться при появлении новых авторов.
func AuthorColors(comments []models.Comment) []string {
	assigned := make(map[authorKey]string)
	colors := make([]string, 0, len(comments))
	next := 0
	for _, c := range comments {
		key := authorKeyOf(c)
		if _, ok := assigned[key]; !ok {
			assigned[key] = authorPalette[next%len(authorPalette)]
			next++
		}
		colors = append(colors, assigned[key])
	}
	return colors
}

// MarkerPosition возвращает позицию маркера на дорожке: таймкод, деленный на
// длительность, ограниченный отрезком [0,1]. NULL, пока длительность неизвестна.
func MarkerPosition(timecodeSeconds float64, durationSeconds *float64) *float64 {
	if durationSeconds == nil || *durationSeconds <= 0 {
		return nil
	}
	pos := timecodeSeconds / *durationSeconds
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return &pos
}

// Кастомные ошибки сервиса комментариев.
var (
	ErrEmptyBody         = errors.New("текст комментария не может быть пустым")
	ErrGuestNameRequired = errors.New("гость должен указать отображаемое имя")
	ErrCommentNotFound   = errors.New("комментарий не найден")
)
