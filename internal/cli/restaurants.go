package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/store"
)

func newRestaurantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restaurants",
		Aliases: []string{"resto"},
		Short:   "Browse and curate restaurants",
	}
	cmd.AddCommand(
		newRestaurantsListCmd(),
		newRestaurantsAddCmd(),
		newRestaurantsFavCmd(),
		newRestaurantsUnfavCmd(),
		newRestaurantsFavoritesCmd(),
	)
	return cmd
}

func newRestaurantsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List restaurants",
		Args:  cobra.NoArgs,
		RunE:  runRestaurantsList,
	}
	cmd.Flags().String("city", "", "Filter by city")
	cmd.Flags().Int("max-budget", 0, "Filter by maximum budget level (1-4)")
	cmd.Flags().String("food", "", "Filter by cuisine tag")
	cmd.Flags().Int("limit", 0, "Limit the number of results")
	return cmd
}

func runRestaurantsList(cmd *cobra.Command, _ []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	city, _ := cmd.Flags().GetString("city")
	maxBudget, _ := cmd.Flags().GetInt("max-budget")
	food, _ := cmd.Flags().GetString("food")
	limit, _ := cmd.Flags().GetInt("limit")

	restaurants := store.NewRestaurantRepository(app.db)
	listed, err := restaurants.List(cmd.Context(), models.RestaurantFilter{
		City:      city,
		MaxBudget: maxBudget,
		FoodType:  food,
		Limit:     limit,
	})
	if err != nil {
		return err
	}

	printRestaurants(cmd, listed)
	return nil
}

func newRestaurantsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a restaurant",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestaurantsAdd,
	}
	cmd.Flags().String("address", "", "Street address")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().Int("budget", 0, "Budget level (1-4)")
	cmd.Flags().StringSlice("food", nil, "Cuisine tags")
	return cmd
}

func runRestaurantsAdd(cmd *cobra.Command, args []string) error {
	app, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.requireUser(cmd); err != nil {
		return err
	}

	address, _ := cmd.Flags().GetString("address")
	city, _ := cmd.Flags().GetString("city")
	budget, _ := cmd.Flags().GetInt("budget")
	food, _ := cmd.Flags().GetStringSlice("food")

	restaurant := &models.Restaurant{
		Name:        args[0],
		Address:     address,
		City:        city,
		BudgetLevel: budget,
		FoodTypes:   food,
	}
	restaurants := store.NewRestaurantRepository(app.db)
	if err := restaurants.Create(cmd.Context(), restaurant); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", restaurant.Name, restaurant.ID)
	return nil
}

func newRestaurantsFavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fav <restaurant-id>",
		Short: "Mark a restaurant as a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.requireUser(cmd)
			if err != nil {
				return err
			}

			restaurants := store.NewRestaurantRepository(app.db)
			if err := restaurants.AddFavorite(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Added to favorites.")
			return nil
		},
	}
}

func newRestaurantsUnfavCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfav <restaurant-id>",
		Short: "Remove a restaurant from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.requireUser(cmd)
			if err != nil {
				return err
			}

			restaurants := store.NewRestaurantRepository(app.db)
			if err := restaurants.RemoveFavorite(cmd.Context(), userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed from favorites.")
			return nil
		},
	}
}

func newRestaurantsFavoritesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorite restaurants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			userID, err := app.requireUser(cmd)
			if err != nil {
				return err
			}

			restaurants := store.NewRestaurantRepository(app.db)
			favorites, err := restaurants.ListFavorites(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printRestaurants(cmd, favorites)
			return nil
		},
	}
}

func printRestaurants(cmd *cobra.Command, restaurants []models.Restaurant) {
	out := cmd.OutOrStdout()
	if len(restaurants) == 0 {
		fmt.Fprintln(out, "No restaurants found.")
		return
	}

	for _, restaurant := range restaurants {
		line := restaurant.Name
		if restaurant.City != "" {
			line += " — " + restaurant.City
		}
		if restaurant.BudgetLevel > 0 {
			line += " " + strings.Repeat("€", restaurant.BudgetLevel)
		}
		if len(restaurant.FoodTypes) > 0 {
			line += " [" + strings.Join(restaurant.FoodTypes, ", ") + "]"
		}
		fmt.Fprintf(out, "%s\n  id: %s\n", line, restaurant.ID)
	}
}
