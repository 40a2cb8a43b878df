package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablee/tablee/internal/models"
)

// Restaurant repository errors.
var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// RestaurantRepository handles restaurant and favorites persistence.
type RestaurantRepository struct {
	db *DB
}

// NewRestaurantRepository creates a new RestaurantRepository.
func NewRestaurantRepository(db *DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

// Create adds a new restaurant.
func (r *RestaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	if err := restaurant.Validate(); err != nil {
		return fmt.Errorf("invalid restaurant: %w", err)
	}
	if restaurant.ID == "" {
		restaurant.ID = uuid.New().String()
	}
	if restaurant.CreatedAt.IsZero() {
		restaurant.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO restaurants (id, name, address, city, budget_level, food_types, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		restaurant.ID,
		restaurant.Name,
		restaurant.Address,
		restaurant.City,
		restaurant.BudgetLevel,
		strings.Join(restaurant.FoodTypes, ","),
		restaurant.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert restaurant: %w", err)
	}
	return nil
}

// Get retrieves a restaurant by ID.
func (r *RestaurantRepository) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, address, city, budget_level, food_types, created_at
		FROM restaurants
		WHERE id = ?
	`, id)
	return scanRestaurant(row.Scan)
}

// List returns restaurants matching the filter, ordered by name.
func (r *RestaurantRepository) List(ctx context.Context, filter models.RestaurantFilter) ([]models.Restaurant, error) {
	query := `
		SELECT id, name, address, city, budget_level, food_types, created_at
		FROM restaurants
		WHERE 1 = 1`
	var args []any

	if filter.City != "" {
		query += " AND city = ?"
		args = append(args, filter.City)
	}
	if filter.MaxBudget > 0 {
		query += " AND budget_level <= ?"
		args = append(args, filter.MaxBudget)
	}

	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant
	for rows.Next() {
		restaurant, err := scanRestaurant(rows.Scan)
		if err != nil {
			return nil, err
		}
		// Cuisine tags are comma-joined in storage; filter here.
		if filter.FoodType != "" && !hasFoodType(restaurant, filter.FoodType) {
			continue
		}
		restaurants = append(restaurants, *restaurant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("restaurant query error: %w", err)
	}
	return restaurants, nil
}

// AddFavorite records the restaurant as a favorite of the user. Adding an
// existing favorite is a no-op.
func (r *RestaurantRepository) AddFavorite(ctx context.Context, userID, restaurantID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO favorite_restaurants (user_id, restaurant_id)
		VALUES (?, ?)
	`, userID, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes the favorite pairing if present.
func (r *RestaurantRepository) RemoveFavorite(ctx context.Context, userID, restaurantID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM favorite_restaurants WHERE user_id = ? AND restaurant_id = ?
	`, userID, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the user's favorite restaurants ordered by name.
func (r *RestaurantRepository) ListFavorites(ctx context.Context, userID string) ([]models.Restaurant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.address, r.city, r.budget_level, r.food_types, r.created_at
		FROM favorite_restaurants f
		JOIN restaurants r ON r.id = f.restaurant_id
		WHERE f.user_id = ?
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant
	for rows.Next() {
		restaurant, err := scanRestaurant(rows.Scan)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, *restaurant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorites query error: %w", err)
	}
	return restaurants, nil
}

func scanRestaurant(scan func(dest ...any) error) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	var foodTypes string
	var createdAt string

	err := scan(
		&restaurant.ID,
		&restaurant.Name,
		&restaurant.Address,
		&restaurant.City,
		&restaurant.BudgetLevel,
		&foodTypes,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("failed to scan restaurant: %w", err)
	}

	if foodTypes != "" {
		restaurant.FoodTypes = strings.Split(foodTypes, ",")
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	restaurant.CreatedAt = parsed

	return &restaurant, nil
}

func hasFoodType(restaurant *models.Restaurant, foodType string) bool {
	for _, t := range restaurant.FoodTypes {
		if strings.EqualFold(strings.TrimSpace(t), foodType) {
			return true
		}
	}
	return false
}
